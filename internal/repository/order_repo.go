package repository

import (
	"context"
	"fmt"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows order listings. Empty fields are ignored.
type OrderFilter struct {
	Phase   string
	State   string
	Process string
	BuyerID string
	Search  string
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter, page, limit int) ([]model.Order, int64, error)
	ListSizeBreakdowns(ctx context.Context, orderID uuid.UUID) ([]model.SizeBreakdown, error)
	UpdateSizeBreakdown(ctx context.Context, sb *model.SizeBreakdown) error
	NextOrderNumber(ctx context.Context, year int) (string, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order together with its size breakdowns
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(order).Error
}

// Delete removes the order and every row it owns
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)

	transferIDs := db.Model(&model.TransferLog{}).Select("id").Where("order_id = ?", id)
	if err := db.Where("transfer_log_id IN (?)", transferIDs).Delete(&model.TransferItem{}).Error; err != nil {
		return err
	}

	owned := []any{
		&model.TransferLog{},
		&model.RejectLog{},
		&model.ProcessTransition{},
		&model.ProcessStep{},
		&model.SizeBreakdown{},
		&model.OrderMaterial{},
		&model.OrderAccessory{},
	}
	for _, m := range owned {
		if err := db.Where("order_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}

	return db.Where("id = ?", id).Delete(&model.Order{}).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindDetail(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Buyer").
		Preload("Style").
		Preload("SizeBreakdowns", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("ProcessSteps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order ASC, created_at ASC") }).
		Preload("TransferLogs", func(db *gorm.DB) *gorm.DB { return db.Order("transferred_at ASC") }).
		Preload("TransferLogs.Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, page, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Order{})
	if filter.Phase != "" {
		db = db.Where("current_phase = ?", filter.Phase)
	}
	if filter.State != "" {
		db = db.Where("current_state = ?", filter.State)
	}
	if filter.Process != "" {
		db = db.Where("current_process = ?", filter.Process)
	}
	if filter.BuyerID != "" {
		db = db.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		db = db.Where("LOWER(order_number) LIKE ? OR LOWER(article) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Buyer").
		Preload("Style").
		Order("created_at DESC").
		Scopes(pagination.Scope(page, limit)).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) ListSizeBreakdowns(ctx context.Context, orderID uuid.UUID) ([]model.SizeBreakdown, error) {
	var sizes []model.SizeBreakdown
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).Order("position ASC").Find(&sizes).Error; err != nil {
		return nil, err
	}
	return sizes, nil
}

func (r *orderRepository) UpdateSizeBreakdown(ctx context.Context, sb *model.SizeBreakdown) error {
	return GetDB(ctx, r.db).Save(sb).Error
}

func (r *orderRepository) NextOrderNumber(ctx context.Context, year int) (string, error) {
	return nextNumber(GetDB(ctx, r.db), "orders", "order_number", fmt.Sprintf("ORD-%d-", year))
}
