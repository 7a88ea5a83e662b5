package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransferPending  = "pending"
	TransferReceived = "received"
)

// TransferLog records a physical hand-off of an order's goods between departments
type TransferLog struct {
	Base
	TransferNumber      string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"transfer_number"`
	OrderID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`
	FromProcessStepID   *uuid.UUID     `gorm:"type:uuid" json:"from_process_step_id"`
	ToProcessStepID     *uuid.UUID     `gorm:"type:uuid;index" json:"to_process_step_id"`
	FromDepartment      string         `gorm:"type:varchar(50)" json:"from_department"`
	FromProcess         ProcessName    `gorm:"type:varchar(30)" json:"from_process"`
	ToDepartment        string         `gorm:"type:varchar(50);not null" json:"to_department"`
	ToProcess           ProcessName    `gorm:"type:varchar(30);not null" json:"to_process"`
	QuantityTransferred int            `gorm:"not null;default:0" json:"quantity_transferred"`
	QuantityCompleted   int            `gorm:"not null;default:0" json:"quantity_completed"`
	QuantityRejected    int            `gorm:"not null;default:0" json:"quantity_rejected"`
	QuantityRework      int            `gorm:"not null;default:0" json:"quantity_rework"`
	Status              string         `gorm:"type:varchar(20);not null;index" json:"status"`
	HandedOverBy        string         `gorm:"type:varchar(100)" json:"handed_over_by"`
	ReceivedBy          string         `gorm:"type:varchar(100)" json:"received_by"`
	TransferredAt       time.Time      `json:"transferred_at"`
	ReceivedAt          *time.Time     `json:"received_at"`
	Notes               string         `gorm:"type:text" json:"notes"`
	Items               []TransferItem `gorm:"foreignKey:TransferLogID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TransferItem is the per-size content of a transfer. Completed is filled
// when the receiving step reports its output per size.
type TransferItem struct {
	Base
	TransferLogID uuid.UUID `gorm:"type:uuid;not null;index" json:"transfer_log_id"`
	Size          string    `gorm:"type:varchar(20);not null" json:"size"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	Completed     *int      `json:"completed,omitempty"`
	BundleCount   int       `gorm:"not null;default:0" json:"bundle_count"`
}
