package model

import (
	"time"

	"github.com/google/uuid"
)

// Order states
const (
	StateAtPPIC     = "at_ppic"
	StateInProgress = "in_progress"
	StateOnHold     = "on_hold"
	StateDelivered  = "delivered"
)

// Process step statuses
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
)

const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

// DefaultBundleSize is used to derive bundle counts when none is given
const DefaultBundleSize = 50

// Order is one production order for a buyer's style
type Order struct {
	Base
	OrderNumber        string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_number"`
	BuyerID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"buyer_id"`
	Buyer              *Buyer          `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	StyleID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"style_id"`
	Style              *Style          `gorm:"foreignKey:StyleID" json:"style,omitempty"`
	Article            string          `gorm:"type:varchar(50)" json:"article"`
	TotalQuantity      int             `gorm:"not null" json:"total_quantity"`
	ProductionDeadline time.Time       `gorm:"not null" json:"production_deadline"`
	DeliveryDeadline   time.Time       `gorm:"not null" json:"delivery_deadline"`
	Priority           string          `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	Notes              string          `gorm:"type:text" json:"notes"`
	CurrentPhase       string          `gorm:"type:varchar(20);not null;index" json:"current_phase"`
	CurrentProcess     ProcessName     `gorm:"type:varchar(30);not null;index" json:"current_process"`
	CurrentState       string          `gorm:"type:varchar(20);not null;index" json:"current_state"`
	StateBeforeHold    string          `gorm:"type:varchar(20)" json:"-"`
	TotalCompleted     int             `gorm:"not null;default:0" json:"total_completed"`
	TotalRejected      int             `gorm:"not null;default:0" json:"total_rejected"`
	TotalRework        int             `gorm:"not null;default:0" json:"total_rework"`
	CreatedBy          string          `gorm:"type:varchar(100)" json:"created_by"`
	SizeBreakdowns     []SizeBreakdown `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"size_breakdowns,omitempty"`
	ProcessSteps       []ProcessStep   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"process_steps,omitempty"`
	TransferLogs       []TransferLog   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"transfer_logs,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsDelivered reports whether the order reached its terminal process
func (o *Order) IsDelivered() bool {
	return o.CurrentProcess == ProcessDelivered
}

// SizeBreakdown holds per-size targets and progress of an order
type SizeBreakdown struct {
	Base
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Size        string    `gorm:"type:varchar(20);not null" json:"size"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Completed   int       `gorm:"not null;default:0" json:"completed"`
	Rejected    int       `gorm:"not null;default:0" json:"rejected"`
	BundleCount int       `gorm:"not null;default:0" json:"bundle_count"`
}

// ProcessStep is one occurrence of a process for an order. Rework flows can
// produce several steps with the same process name.
type ProcessStep struct {
	Base
	OrderID           uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	ProcessName       ProcessName `gorm:"type:varchar(30);not null;index" json:"process_name"`
	ProcessPhase      string      `gorm:"type:varchar(20);not null" json:"process_phase"`
	Department        string      `gorm:"type:varchar(50);not null" json:"department"`
	SequenceOrder     int         `gorm:"not null" json:"sequence_order"`
	Status            string      `gorm:"type:varchar(20);not null;index" json:"status"`
	QuantityReceived  int         `gorm:"not null;default:0" json:"quantity_received"`
	QuantityCompleted int         `gorm:"not null;default:0" json:"quantity_completed"`
	QuantityRejected  int         `gorm:"not null;default:0" json:"quantity_rejected"`
	QuantityRework    int         `gorm:"not null;default:0" json:"quantity_rework"`
	AssignedBy        string      `gorm:"type:varchar(100)" json:"assigned_by"`
	AssignedAt        *time.Time  `json:"assigned_at"`
	ArrivedAt         *time.Time  `json:"arrived_at"`
	StartedAt         *time.Time  `json:"started_at"`
	CompletedAt       *time.Time  `json:"completed_at"`
	Notes             string      `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// IsActive reports whether the step still occupies its department
func (s *ProcessStep) IsActive() bool {
	return s.Status == StepPending || s.Status == StepInProgress
}

// ProcessTransition is an append-only audit row for an order's state changes
type ProcessTransition struct {
	Base
	OrderID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	ProcessStepID  *uuid.UUID  `gorm:"type:uuid;index" json:"process_step_id"`
	FromState      string      `gorm:"type:varchar(20)" json:"from_state"`
	ToState        string      `gorm:"type:varchar(20);not null" json:"to_state"`
	TransitionTime time.Time   `gorm:"not null;index" json:"transition_time"`
	PerformedBy    string      `gorm:"type:varchar(100)" json:"performed_by"`
	ProcessName    ProcessName `gorm:"type:varchar(30)" json:"process_name"`
	Department     string      `gorm:"type:varchar(50)" json:"department"`
	Quantity       int         `json:"quantity"`
	Notes          string      `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time   `json:"created_at"`
}
