package repository

import (
	"context"

	"garmentflow/internal/model"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StepFilter narrows process step listings. Empty fields are ignored.
type StepFilter struct {
	OrderID     string
	ProcessName string
	Status      string
	Department  string
}

// ProcessRepository stores process steps and the transition history of orders
type ProcessRepository interface {
	CreateStep(ctx context.Context, step *model.ProcessStep) error
	UpdateStep(ctx context.Context, step *model.ProcessStep) error
	FindStepByID(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error)
	FindStepByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error)
	ListStepsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProcessStep, error)
	ListSteps(ctx context.Context, filter StepFilter, page, limit int) ([]model.ProcessStep, int64, error)
	CreateTransition(ctx context.Context, t *model.ProcessTransition) error
	ListTransitionsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProcessTransition, error)
}

type processRepository struct {
	db *gorm.DB
}

func NewProcessRepository(db *gorm.DB) ProcessRepository {
	return &processRepository{db: db}
}

func (r *processRepository) CreateStep(ctx context.Context, step *model.ProcessStep) error {
	return GetDB(ctx, r.db).Create(step).Error
}

func (r *processRepository) UpdateStep(ctx context.Context, step *model.ProcessStep) error {
	return GetDB(ctx, r.db).Save(step).Error
}

func (r *processRepository) FindStepByID(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	var step model.ProcessStep
	if err := GetDB(ctx, r.db).First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *processRepository) FindStepByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	var step model.ProcessStep
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

// ListStepsByOrder returns the steps of an order in flow order
func (r *processRepository) ListStepsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProcessStep, error) {
	var steps []model.ProcessStep
	if err := GetDB(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("sequence_order ASC, created_at ASC").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *processRepository) ListSteps(ctx context.Context, filter StepFilter, page, limit int) ([]model.ProcessStep, int64, error) {
	var steps []model.ProcessStep
	var total int64

	db := GetDB(ctx, r.db).Model(&model.ProcessStep{}).Where("process_name <> ?", model.ProcessDraft)
	if filter.OrderID != "" {
		db = db.Where("order_id = ?", filter.OrderID)
	}
	if filter.ProcessName != "" {
		db = db.Where("process_name = ?", filter.ProcessName)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		db = db.Where("department = ?", filter.Department)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("updated_at DESC").Scopes(pagination.Scope(page, limit)).Find(&steps).Error; err != nil {
		return nil, 0, err
	}

	return steps, total, nil
}

func (r *processRepository) CreateTransition(ctx context.Context, t *model.ProcessTransition) error {
	return GetDB(ctx, r.db).Create(t).Error
}

func (r *processRepository) ListTransitionsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProcessTransition, error) {
	var transitions []model.ProcessTransition
	if err := GetDB(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("transition_time ASC, created_at ASC").
		Find(&transitions).Error; err != nil {
		return nil, err
	}
	return transitions, nil
}
