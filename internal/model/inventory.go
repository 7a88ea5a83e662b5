package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockItemKind selects the material or accessory ledger
type StockItemKind string

const (
	KindMaterial  StockItemKind = "material"
	KindAccessory StockItemKind = "accessory"
)

// Valid reports whether k is a known kind
func (k StockItemKind) Valid() bool {
	return k == KindMaterial || k == KindAccessory
}

func (k StockItemKind) ItemTable() string {
	if k == KindAccessory {
		return "accessories"
	}
	return "materials"
}

func (k StockItemKind) TransactionTable() string {
	if k == KindAccessory {
		return "accessory_stock_transactions"
	}
	return "material_stock_transactions"
}

func (k StockItemKind) RequirementTable() string {
	if k == KindAccessory {
		return "order_accessories"
	}
	return "order_materials"
}

// Ledger transaction types
const (
	TxTypeIn         = "in"
	TxTypeOut        = "out"
	TxTypeAdjustment = "adjustment"
	TxTypeReturn     = "return"
)

// ValidTxType reports whether t is one of the TxType constants
func ValidTxType(t string) bool {
	switch t {
	case TxTypeIn, TxTypeOut, TxTypeAdjustment, TxTypeReturn:
		return true
	}
	return false
}

// Ledger reference types
const (
	RefTypeManual = "manual"
	RefTypeOrder  = "order"
)

// StockItem holds the master data shared by materials and accessories
type StockItem struct {
	Code          string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Category      string          `gorm:"type:varchar(100)" json:"category"`
	Specification string          `gorm:"type:varchar(255)" json:"specification"` // colour/width for fabric, size for trims
	Unit          string          `gorm:"type:varchar(20);not null" json:"unit"`
	MinimumStock  decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"minimum_stock"`
	Supplier      string          `gorm:"type:varchar(255)" json:"supplier"`
}

// StockItemRecord is a stock item row as stored in either item table
type StockItemRecord struct {
	Base
	StockItem
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Material is fabric, lining, interlining...
type Material struct {
	StockItemRecord
}

func (Material) TableName() string { return KindMaterial.ItemTable() }

// Accessory is buttons, zippers, labels, thread...
type Accessory struct {
	StockItemRecord
}

func (Accessory) TableName() string { return KindAccessory.ItemTable() }

// StockTransaction is one signed movement. Current stock is never stored:
// it is the sum of Quantity over an item's rows.
type StockTransaction struct {
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	TransactionType string          `gorm:"type:varchar(20);not null" json:"transaction_type"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	Unit            string          `gorm:"type:varchar(20)" json:"unit"`
	ReferenceType   string          `gorm:"type:varchar(30)" json:"reference_type"`
	ReferenceID     *uuid.UUID      `gorm:"type:uuid;index" json:"reference_id"`
	Notes           string          `gorm:"type:text" json:"notes"`
	PerformedBy     string          `gorm:"type:varchar(100)" json:"performed_by"`
	TransactionDate time.Time       `gorm:"not null;index" json:"transaction_date"`
}

// LedgerEntry is a ledger row as stored in either transaction table
type LedgerEntry struct {
	Base
	StockTransaction
	CreatedAt time.Time `json:"created_at"`
}

type MaterialStockTransaction struct {
	LedgerEntry
}

func (MaterialStockTransaction) TableName() string { return KindMaterial.TransactionTable() }

type AccessoryStockTransaction struct {
	LedgerEntry
}

func (AccessoryStockTransaction) TableName() string { return KindAccessory.TransactionTable() }

// OrderItemRequirement tracks what an order needs of one item and what happened to it
type OrderItemRequirement struct {
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ItemID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity_required"`
	QuantityIssued   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"quantity_issued"`
	QuantityUsed     decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"quantity_used"`
	QuantityWasted   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"quantity_wasted"`
	QuantityReturned decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"quantity_returned"`
	Notes            string          `gorm:"type:text" json:"notes"`
}

// RequirementRecord is a requirement row as stored in either junction table
type RequirementRecord struct {
	Base
	OrderItemRequirement
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shortfall is what still has to be issued
func (r *RequirementRecord) Shortfall() decimal.Decimal {
	return r.QuantityRequired.Sub(r.QuantityIssued)
}

type OrderMaterial struct {
	RequirementRecord
}

func (OrderMaterial) TableName() string { return KindMaterial.RequirementTable() }

type OrderAccessory struct {
	RequirementRecord
}

func (OrderAccessory) TableName() string { return KindAccessory.RequirementTable() }
