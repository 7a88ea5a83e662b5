package repository

import (
	"context"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerScale is the number of decimal places stock quantities are kept at
const ledgerScale = 4

type ItemFilter struct {
	Search   string
	Category string
}

// StockRepository reads and writes materials and accessories together with
// their ledgers and order requirements. Every method takes the kind that
// selects the tables.
type StockRepository interface {
	CreateItem(ctx context.Context, kind model.StockItemKind, item *model.StockItemRecord) error
	UpdateItem(ctx context.Context, kind model.StockItemKind, item *model.StockItemRecord) error
	DeleteItem(ctx context.Context, kind model.StockItemKind, id uuid.UUID) error
	FindItem(ctx context.Context, kind model.StockItemKind, id uuid.UUID) (*model.StockItemRecord, error)
	FindItemForUpdate(ctx context.Context, kind model.StockItemKind, id uuid.UUID) (*model.StockItemRecord, error)
	FindItemByCode(ctx context.Context, kind model.StockItemKind, code string) (*model.StockItemRecord, error)
	ListItems(ctx context.Context, kind model.StockItemKind, filter ItemFilter, page, limit int) ([]model.StockItemRecord, int64, error)
	ListAllItems(ctx context.Context, kind model.StockItemKind) ([]model.StockItemRecord, error)

	CreateEntry(ctx context.Context, kind model.StockItemKind, entry *model.LedgerEntry) error
	SumQuantity(ctx context.Context, kind model.StockItemKind, itemID uuid.UUID) (decimal.Decimal, error)
	SumQuantityByItem(ctx context.Context, kind model.StockItemKind) (map[uuid.UUID]decimal.Decimal, error)
	ListEntries(ctx context.Context, kind model.StockItemKind, itemID uuid.UUID, page, limit int) ([]model.LedgerEntry, int64, error)

	FindRequirement(ctx context.Context, kind model.StockItemKind, orderID, itemID uuid.UUID) (*model.RequirementRecord, error)
	SaveRequirement(ctx context.Context, kind model.StockItemKind, req *model.RequirementRecord) error
	ListRequirements(ctx context.Context, kind model.StockItemKind, orderID uuid.UUID) ([]model.RequirementRecord, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) items(ctx context.Context, kind model.StockItemKind) *gorm.DB {
	return GetDB(ctx, r.db).Model(&model.StockItemRecord{}).Table(kind.ItemTable())
}

func (r *stockRepository) CreateItem(ctx context.Context, kind model.StockItemKind, item *model.StockItemRecord) error {
	return GetDB(ctx, r.db).Table(kind.ItemTable()).Create(item).Error
}

func (r *stockRepository) UpdateItem(ctx context.Context, kind model.StockItemKind, item *model.StockItemRecord) error {
	return GetDB(ctx, r.db).Table(kind.ItemTable()).Save(item).Error
}

func (r *stockRepository) DeleteItem(ctx context.Context, kind model.StockItemKind, id uuid.UUID) error {
	return GetDB(ctx, r.db).Table(kind.ItemTable()).Where("id = ?", id).Delete(&model.StockItemRecord{}).Error
}

func (r *stockRepository) FindItem(ctx context.Context, kind model.StockItemKind, id uuid.UUID) (*model.StockItemRecord, error) {
	var item model.StockItemRecord
	if err := r.items(ctx, kind).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemForUpdate locks the item row so ledger folds for it serialize
func (r *stockRepository) FindItemForUpdate(ctx context.Context, kind model.StockItemKind, id uuid.UUID) (*model.StockItemRecord, error) {
	var item model.StockItemRecord
	if err := r.items(ctx, kind).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) FindItemByCode(ctx context.Context, kind model.StockItemKind, code string) (*model.StockItemRecord, error) {
	var item model.StockItemRecord
	if err := r.items(ctx, kind).Where("code = ?", code).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) ListItems(ctx context.Context, kind model.StockItemKind, filter ItemFilter, page, limit int) ([]model.StockItemRecord, int64, error) {
	var items []model.StockItemRecord
	var total int64

	db := r.items(ctx, kind)
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		db = db.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("code ASC").Scopes(pagination.Scope(page, limit)).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *stockRepository) ListAllItems(ctx context.Context, kind model.StockItemKind) ([]model.StockItemRecord, error) {
	var items []model.StockItemRecord
	if err := r.items(ctx, kind).Order("code ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *stockRepository) CreateEntry(ctx context.Context, kind model.StockItemKind, entry *model.LedgerEntry) error {
	return GetDB(ctx, r.db).Table(kind.TransactionTable()).Create(entry).Error
}

// SumQuantity folds every ledger row of one item
func (r *stockRepository) SumQuantity(ctx context.Context, kind model.StockItemKind, itemID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := GetDB(ctx, r.db).Table(kind.TransactionTable()).
		Select("COALESCE(SUM(quantity), 0)").
		Where("item_id = ?", itemID).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(ledgerScale), nil
}

// SumQuantityByItem folds the whole ledger grouped by item. Items without
// rows are absent from the map.
func (r *stockRepository) SumQuantityByItem(ctx context.Context, kind model.StockItemKind) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := GetDB(ctx, r.db).Table(kind.TransactionTable()).
		Select("item_id, COALESCE(SUM(quantity), 0)").
		Group("item_id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var id uuid.UUID
		var total decimal.Decimal
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		totals[id] = total.Round(ledgerScale)
	}
	return totals, rows.Err()
}

func (r *stockRepository) ListEntries(ctx context.Context, kind model.StockItemKind, itemID uuid.UUID, page, limit int) ([]model.LedgerEntry, int64, error) {
	var entries []model.LedgerEntry
	var total int64

	db := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).Table(kind.TransactionTable()).Where("item_id = ?", itemID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("transaction_date DESC, created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *stockRepository) FindRequirement(ctx context.Context, kind model.StockItemKind, orderID, itemID uuid.UUID) (*model.RequirementRecord, error) {
	var req model.RequirementRecord
	if err := GetDB(ctx, r.db).Table(kind.RequirementTable()).
		Where("order_id = ? AND item_id = ?", orderID, itemID).
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// SaveRequirement inserts a new requirement or updates an existing one
func (r *stockRepository) SaveRequirement(ctx context.Context, kind model.StockItemKind, req *model.RequirementRecord) error {
	db := GetDB(ctx, r.db).Table(kind.RequirementTable())
	if req.ID == uuid.Nil {
		return db.Create(req).Error
	}
	return db.Save(req).Error
}

func (r *stockRepository) ListRequirements(ctx context.Context, kind model.StockItemKind, orderID uuid.UUID) ([]model.RequirementRecord, error) {
	var reqs []model.RequirementRecord
	if err := GetDB(ctx, r.db).Table(kind.RequirementTable()).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}
