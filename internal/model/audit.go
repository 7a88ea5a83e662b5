package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateBuyer     = "CREATE_BUYER"
	ActionUpdateBuyer     = "UPDATE_BUYER"
	ActionDeleteBuyer     = "DELETE_BUYER"
	ActionCreateStyle     = "CREATE_STYLE"
	ActionUpdateStyle     = "UPDATE_STYLE"
	ActionDeleteStyle     = "DELETE_STYLE"
	ActionCreateItem      = "CREATE_STOCK_ITEM"
	ActionUpdateItem      = "UPDATE_STOCK_ITEM"
	ActionDeleteItem      = "DELETE_STOCK_ITEM"
	ActionStockMovement   = "STOCK_MOVEMENT"
	ActionIssueMaterials  = "ISSUE_ORDER_MATERIALS"
	ActionReturnMaterials = "RETURN_ORDER_MATERIALS"
	ActionSetRequirements = "SET_ORDER_REQUIREMENTS"
	ActionUpdateOrder     = "UPDATE_ORDER"
	ActionDeleteOrder     = "DELETE_ORDER"
)

// AuditLog tracks Who, What, and When for master data and stock changes.
// Order process history lives in ProcessTransition.
type AuditLog struct {
	Base
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated jobs
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
