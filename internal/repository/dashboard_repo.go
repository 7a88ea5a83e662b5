package repository

import (
	"context"
	"fmt"
	"time"

	"garmentflow/internal/model"

	"gorm.io/gorm"
)

// CountRow is one bucket of a grouped count
type CountRow struct {
	Bucket string
	Count  int64
}

// OrderTotals are factory-wide sums over all orders
type OrderTotals struct {
	Orders    int64
	Quantity  int64
	Rejected  int64
	Rework    int64
	Delivered int64
}

// DeliveredSpan is the lifetime of one delivered order
type DeliveredSpan struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DashboardRepository interface {
	CountOrdersBy(ctx context.Context, column string) ([]CountRow, error)
	OrderTotals(ctx context.Context) (OrderTotals, error)
	OpenWIP(ctx context.Context) (int64, error)
	DeliveredSpans(ctx context.Context) ([]DeliveredSpan, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

var groupableOrderColumns = map[string]bool{
	"current_phase":   true,
	"current_state":   true,
	"current_process": true,
}

func (r *dashboardRepository) CountOrdersBy(ctx context.Context, column string) ([]CountRow, error) {
	if !groupableOrderColumns[column] {
		return nil, fmt.Errorf("cannot group orders by %q", column)
	}

	var rows []CountRow
	if err := GetDB(ctx, r.db).Model(&model.Order{}).
		Select(column + " AS bucket, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders by %s: %w", column, err)
	}
	return rows, nil
}

func (r *dashboardRepository) OrderTotals(ctx context.Context) (OrderTotals, error) {
	var totals OrderTotals
	err := GetDB(ctx, r.db).Model(&model.Order{}).
		Select(
			"COUNT(*) AS orders, "+
				"COALESCE(SUM(total_quantity), 0) AS quantity, "+
				"COALESCE(SUM(total_rejected), 0) AS rejected, "+
				"COALESCE(SUM(total_rework), 0) AS rework, "+
				"COALESCE(SUM(CASE WHEN current_process = ? THEN 1 ELSE 0 END), 0) AS delivered",
			model.ProcessDelivered,
		).
		Scan(&totals).Error
	if err != nil {
		return OrderTotals{}, fmt.Errorf("failed to sum orders: %w", err)
	}
	return totals, nil
}

// OpenWIP sums what is still to be produced over orders not yet delivered
func (r *dashboardRepository) OpenWIP(ctx context.Context) (int64, error) {
	var wip int64
	err := GetDB(ctx, r.db).Model(&model.Order{}).
		Select("COALESCE(SUM(total_quantity - total_completed), 0)").
		Where("current_process <> ?", model.ProcessDelivered).
		Row().Scan(&wip)
	if err != nil {
		return 0, fmt.Errorf("failed to sum work in progress: %w", err)
	}
	return wip, nil
}

func (r *dashboardRepository) DeliveredSpans(ctx context.Context) ([]DeliveredSpan, error) {
	var spans []DeliveredSpan
	if err := GetDB(ctx, r.db).Model(&model.Order{}).
		Select("created_at, updated_at").
		Where("current_process = ?", model.ProcessDelivered).
		Scan(&spans).Error; err != nil {
		return nil, fmt.Errorf("failed to load delivered orders: %w", err)
	}
	return spans, nil
}
