package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RejectCategoryReject = "reject"
	RejectCategoryRework = "rework"
)

// RejectLog is a quality exception raised against a process step
type RejectLog struct {
	Base
	OrderID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	ProcessStepID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"process_step_id"`
	RejectType        string     `gorm:"type:varchar(50);not null" json:"reject_type"`
	RejectCategory    string     `gorm:"type:varchar(20);not null" json:"reject_category"`
	Quantity          int        `gorm:"not null" json:"quantity"`
	Size              string     `gorm:"type:varchar(20)" json:"size"`
	Description       string     `gorm:"type:text;not null" json:"description"`
	RootCause         string     `gorm:"type:text" json:"root_cause"`
	Action            string     `gorm:"type:text;not null" json:"action"`
	ReportedBy        string     `gorm:"type:varchar(100);not null" json:"reported_by"`
	ReworkCompleted   bool       `gorm:"not null;default:false" json:"rework_completed"`
	ReworkCompletedAt *time.Time `json:"rework_completed_at"`
	CreatedAt         time.Time  `json:"created_at"`
}
