package service

import (
	"context"
	"math"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"

	"github.com/shopspring/decimal"
)

type DashboardService interface {
	GetStats(ctx context.Context) (*model.DashboardStats, error)
}

type dashboardService struct {
	dashRepo repository.DashboardRepository
	stock    StockService
}

func NewDashboardService(dashRepo repository.DashboardRepository, stock StockService) DashboardService {
	return &dashboardService{dashRepo: dashRepo, stock: stock}
}

func (s *dashboardService) GetStats(ctx context.Context) (*model.DashboardStats, error) {
	totals, err := s.dashRepo.OrderTotals(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to load order totals", err)
	}

	stats := &model.DashboardStats{
		TotalOrders:       totals.Orders,
		DeliveredOrders:   totals.Delivered,
		TotalRejected:     totals.Rejected,
		TotalRework:       totals.Rework,
		RejectRatePercent: rejectRate(totals.Rejected, totals.Quantity),
	}

	if stats.OrdersByPhase, err = s.countBy(ctx, "current_phase"); err != nil {
		return nil, err
	}
	if stats.OrdersByState, err = s.countBy(ctx, "current_state"); err != nil {
		return nil, err
	}
	if stats.OrdersByProcess, err = s.countBy(ctx, "current_process"); err != nil {
		return nil, err
	}

	if stats.WIPQuantity, err = s.dashRepo.OpenWIP(ctx); err != nil {
		return nil, apperror.Internal("failed to load work in progress", err)
	}

	spans, err := s.dashRepo.DeliveredSpans(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to load delivered orders", err)
	}
	stats.AverageProductionDays = averageDays(spans)

	lowMaterials, err := s.stock.LowStockItems(ctx, model.KindMaterial)
	if err != nil {
		return nil, err
	}
	lowAccessories, err := s.stock.LowStockItems(ctx, model.KindAccessory)
	if err != nil {
		return nil, err
	}
	stats.LowStockMaterials = len(lowMaterials)
	stats.LowStockAccessories = len(lowAccessories)

	return stats, nil
}

func (s *dashboardService) countBy(ctx context.Context, column string) (map[string]int64, error) {
	rows, err := s.dashRepo.CountOrdersBy(ctx, column)
	if err != nil {
		return nil, apperror.Internal("failed to count orders", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] = r.Count
	}
	return out, nil
}

// rejectRate is the rejected share of all ordered pieces as a percentage
func rejectRate(rejected, quantity int64) float64 {
	if quantity <= 0 {
		return 0
	}
	return decimal.NewFromInt(rejected * 100).
		Div(decimal.NewFromInt(quantity)).
		Round(1).
		InexactFloat64()
}

// averageDays counts every started day of an order, then averages
func averageDays(spans []repository.DeliveredSpan) float64 {
	if len(spans) == 0 {
		return 0
	}
	total := 0.0
	for _, sp := range spans {
		total += math.Ceil(sp.UpdatedAt.Sub(sp.CreatedAt).Hours() / 24)
	}
	return decimal.NewFromFloat(total / float64(len(spans))).Round(1).InexactFloat64()
}
