package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// What happens to leftover cut fabric once an order is done
const (
	LeftoverReuse   = "reuse"
	LeftoverReturn  = "return"
	LeftoverDispose = "dispose"
)

// Buyer is the brand or customer an order is produced for
type Buyer struct {
	Base
	Code           string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Country        string         `gorm:"type:varchar(100)" json:"country"`
	ContactPerson  string         `gorm:"type:varchar(255)" json:"contact_person"`
	LeftoverPolicy string         `gorm:"type:varchar(20);not null;default:'reuse'" json:"leftover_policy"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Style is a buyer's garment design; orders are placed against a style
type Style struct {
	Base
	BuyerID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"buyer_id"`
	Buyer       *Buyer         `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	StyleCode   string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"style_code"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Article     string         `gorm:"type:varchar(50)" json:"article"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
