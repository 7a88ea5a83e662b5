package model

// DashboardStats aggregates order progress across the factory
type DashboardStats struct {
	TotalOrders           int64            `json:"total_orders"`
	OrdersByPhase         map[string]int64 `json:"orders_by_phase"`
	OrdersByState         map[string]int64 `json:"orders_by_state"`
	OrdersByProcess       map[string]int64 `json:"orders_by_process"`
	WIPQuantity           int64            `json:"wip_quantity"`
	DeliveredOrders       int64            `json:"delivered_orders"`
	AverageProductionDays float64          `json:"average_production_days"`
	RejectRatePercent     float64          `json:"reject_rate_percent"` // one decimal
	TotalRejected         int64            `json:"total_rejected"`
	TotalRework           int64            `json:"total_rework"`
	LowStockMaterials     int              `json:"low_stock_materials"`
	LowStockAccessories   int              `json:"low_stock_accessories"`
}
