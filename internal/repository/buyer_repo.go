package repository

import (
	"context"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasterRepository stores buyers and their styles
type MasterRepository interface {
	CreateBuyer(ctx context.Context, buyer *model.Buyer) error
	UpdateBuyer(ctx context.Context, buyer *model.Buyer) error
	DeleteBuyer(ctx context.Context, id uuid.UUID) error
	FindBuyer(ctx context.Context, id uuid.UUID) (*model.Buyer, error)
	ListBuyers(ctx context.Context, search string, page, limit int) ([]model.Buyer, int64, error)

	CreateStyle(ctx context.Context, style *model.Style) error
	UpdateStyle(ctx context.Context, style *model.Style) error
	DeleteStyle(ctx context.Context, id uuid.UUID) error
	FindStyle(ctx context.Context, id uuid.UUID) (*model.Style, error)
	ListStyles(ctx context.Context, buyerID, search string, page, limit int) ([]model.Style, int64, error)
	CountOrdersForBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error)
	CountOrdersForStyle(ctx context.Context, styleID uuid.UUID) (int64, error)
}

type masterRepository struct {
	db *gorm.DB
}

func NewMasterRepository(db *gorm.DB) MasterRepository {
	return &masterRepository{db: db}
}

func (r *masterRepository) CreateBuyer(ctx context.Context, buyer *model.Buyer) error {
	return GetDB(ctx, r.db).Create(buyer).Error
}

func (r *masterRepository) UpdateBuyer(ctx context.Context, buyer *model.Buyer) error {
	return GetDB(ctx, r.db).Save(buyer).Error
}

func (r *masterRepository) DeleteBuyer(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Buyer{}).Error
}

func (r *masterRepository) FindBuyer(ctx context.Context, id uuid.UUID) (*model.Buyer, error) {
	var buyer model.Buyer
	if err := GetDB(ctx, r.db).First(&buyer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *masterRepository) ListBuyers(ctx context.Context, search string, page, limit int) ([]model.Buyer, int64, error) {
	var buyers []model.Buyer
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Buyer{})
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("name ASC").Scopes(pagination.Scope(page, limit)).Find(&buyers).Error; err != nil {
		return nil, 0, err
	}

	return buyers, total, nil
}

func (r *masterRepository) CreateStyle(ctx context.Context, style *model.Style) error {
	return GetDB(ctx, r.db).Create(style).Error
}

func (r *masterRepository) UpdateStyle(ctx context.Context, style *model.Style) error {
	return GetDB(ctx, r.db).Omit("Buyer").Save(style).Error
}

func (r *masterRepository) DeleteStyle(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Style{}).Error
}

func (r *masterRepository) FindStyle(ctx context.Context, id uuid.UUID) (*model.Style, error) {
	var style model.Style
	if err := GetDB(ctx, r.db).Preload("Buyer").First(&style, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &style, nil
}

func (r *masterRepository) ListStyles(ctx context.Context, buyerID, search string, page, limit int) ([]model.Style, int64, error) {
	var styles []model.Style
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Style{})
	if buyerID != "" {
		db = db.Where("buyer_id = ?", buyerID)
	}
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(style_code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Buyer").Order("style_code ASC").Scopes(pagination.Scope(page, limit)).Find(&styles).Error; err != nil {
		return nil, 0, err
	}

	return styles, total, nil
}

func (r *masterRepository) CountOrdersForBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Order{}).Where("buyer_id = ?", buyerID).Count(&count).Error
	return count, err
}

func (r *masterRepository) CountOrdersForStyle(ctx context.Context, styleID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Order{}).Where("style_id = ?", styleID).Count(&count).Error
	return count, err
}
