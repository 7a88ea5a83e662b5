package repository

import (
	"context"
	"fmt"

	"garmentflow/internal/model"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransferFilter struct {
	OrderID      string
	Status       string
	ToDepartment string
}

type TransferRepository interface {
	Create(ctx context.Context, transfer *model.TransferLog) error
	Update(ctx context.Context, transfer *model.TransferLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TransferLog, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TransferLog, error)
	FindPendingTo(ctx context.Context, orderID uuid.UUID, toProcess model.ProcessName) (*model.TransferLog, error)
	FindLatestToStep(ctx context.Context, stepID uuid.UUID) (*model.TransferLog, error)
	ReplaceItems(ctx context.Context, transferID uuid.UUID, items []model.TransferItem) error
	List(ctx context.Context, filter TransferFilter, page, limit int) ([]model.TransferLog, int64, error)
	NextTransferNumber(ctx context.Context, year int) (string, error)
}

type transferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

// Create inserts the transfer together with its items
func (r *transferRepository) Create(ctx context.Context, transfer *model.TransferLog) error {
	return GetDB(ctx, r.db).Create(transfer).Error
}

func (r *transferRepository) Update(ctx context.Context, transfer *model.TransferLog) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(transfer).Error
}

func (r *transferRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TransferLog, error) {
	var transfer model.TransferLog
	if err := GetDB(ctx, r.db).Preload("Items").First(&transfer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TransferLog, error) {
	var transfer model.TransferLog
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

// FindPendingTo returns the newest pending transfer of an order heading to toProcess
func (r *transferRepository) FindPendingTo(ctx context.Context, orderID uuid.UUID, toProcess model.ProcessName) (*model.TransferLog, error) {
	var transfer model.TransferLog
	if err := GetDB(ctx, r.db).
		Where("order_id = ? AND to_process = ? AND status = ?", orderID, toProcess, model.TransferPending).
		Order("transferred_at DESC").
		First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) FindLatestToStep(ctx context.Context, stepID uuid.UUID) (*model.TransferLog, error) {
	var transfer model.TransferLog
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Where("to_process_step_id = ?", stepID).
		Order("transferred_at DESC").
		First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) ReplaceItems(ctx context.Context, transferID uuid.UUID, items []model.TransferItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("transfer_log_id = ?", transferID).Delete(&model.TransferItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].TransferLogID = transferID
	}
	return db.Create(&items).Error
}

func (r *transferRepository) List(ctx context.Context, filter TransferFilter, page, limit int) ([]model.TransferLog, int64, error) {
	var transfers []model.TransferLog
	var total int64

	db := GetDB(ctx, r.db).Model(&model.TransferLog{})
	if filter.OrderID != "" {
		db = db.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.ToDepartment != "" {
		db = db.Where("to_department = ?", filter.ToDepartment)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Items").Order("transferred_at DESC").Scopes(pagination.Scope(page, limit)).Find(&transfers).Error; err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

func (r *transferRepository) NextTransferNumber(ctx context.Context, year int) (string, error) {
	return nextNumber(GetDB(ctx, r.db), "transfer_logs", "transfer_number", fmt.Sprintf("TRF-%d-", year))
}
