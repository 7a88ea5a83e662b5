package repository

import (
	"context"

	"garmentflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RejectRepository interface {
	Create(ctx context.Context, reject *model.RejectLog) error
	Update(ctx context.Context, reject *model.RejectLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RejectLog, error)
	ListByStep(ctx context.Context, stepID uuid.UUID) ([]model.RejectLog, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RejectLog, error)
}

type rejectRepository struct {
	db *gorm.DB
}

func NewRejectRepository(db *gorm.DB) RejectRepository {
	return &rejectRepository{db: db}
}

func (r *rejectRepository) Create(ctx context.Context, reject *model.RejectLog) error {
	return GetDB(ctx, r.db).Create(reject).Error
}

func (r *rejectRepository) Update(ctx context.Context, reject *model.RejectLog) error {
	return GetDB(ctx, r.db).Save(reject).Error
}

func (r *rejectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RejectLog, error) {
	var reject model.RejectLog
	if err := GetDB(ctx, r.db).First(&reject, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reject, nil
}

func (r *rejectRepository) ListByStep(ctx context.Context, stepID uuid.UUID) ([]model.RejectLog, error) {
	var rejects []model.RejectLog
	if err := GetDB(ctx, r.db).Where("process_step_id = ?", stepID).Order("created_at ASC").Find(&rejects).Error; err != nil {
		return nil, err
	}
	return rejects, nil
}

func (r *rejectRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RejectLog, error) {
	var rejects []model.RejectLog
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rejects).Error; err != nil {
		return nil, err
	}
	return rejects, nil
}
