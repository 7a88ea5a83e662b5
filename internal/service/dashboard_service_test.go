package service

import (
	"context"
	"testing"
	"time"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
)

func TestRejectRate(t *testing.T) {
	cases := []struct {
		rejected, quantity int64
		want               float64
	}{
		{0, 0, 0},
		{10, 500, 2},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{7, 1000, 0.7},
	}
	for _, c := range cases {
		if got := rejectRate(c.rejected, c.quantity); got != c.want {
			t.Errorf("rejectRate(%d, %d) = %v, want %v", c.rejected, c.quantity, got, c.want)
		}
	}
}

func TestAverageDaysCountsStartedDays(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	// 10 days, 10 days and an hour, two hours: 10 + 11 + 1 over three orders
	spans := []repository.DeliveredSpan{
		{CreatedAt: start, UpdatedAt: start.Add(10 * 24 * time.Hour)},
		{CreatedAt: start, UpdatedAt: start.Add(10*24*time.Hour + time.Hour)},
		{CreatedAt: start, UpdatedAt: start.Add(2 * time.Hour)},
	}
	if got := averageDays(spans); got != 7.3 {
		t.Fatalf("averageDays = %v, want 7.3", got)
	}
	if got := averageDays(nil); got != 0 {
		t.Fatalf("averageDays(nil) = %v", got)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t)
	step := env.assign(t, order.ID.String(), model.ProcessCutting).Step
	if _, err := env.process.StartStep(ctx, step.ID.String(), StartStepRequest{ReceivedBy: "cutter.lan"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.process.RecordReject(ctx, step.ID.String(), RecordRejectRequest{
		RejectType: "stain", RejectCategory: model.RejectCategoryReject, Quantity: 10,
		Description: "oil stain", Action: "scrap", ReportedBy: "qc.bao",
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	env.createItem(t, model.KindMaterial, "FAB-LOW", "m", 100)

	stats, err := env.dashboard.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrders != 1 || stats.DeliveredOrders != 0 {
		t.Fatalf("orders total=%d delivered=%d", stats.TotalOrders, stats.DeliveredOrders)
	}
	if stats.TotalRejected != 10 || stats.RejectRatePercent != 2 {
		t.Fatalf("rejected=%d rate=%v", stats.TotalRejected, stats.RejectRatePercent)
	}
	if stats.OrdersByPhase[model.PhaseProduction] != 1 || stats.OrdersByState[model.StateInProgress] != 1 {
		t.Fatalf("buckets phase=%v state=%v", stats.OrdersByPhase, stats.OrdersByState)
	}
	if stats.OrdersByProcess[string(model.ProcessCutting)] != 1 {
		t.Fatalf("process buckets %v", stats.OrdersByProcess)
	}
	if stats.LowStockMaterials != 1 || stats.LowStockAccessories != 0 {
		t.Fatalf("low stock materials=%d accessories=%d", stats.LowStockMaterials, stats.LowStockAccessories)
	}
	if stats.AverageProductionDays != 0 {
		t.Fatalf("average days %v with nothing delivered", stats.AverageProductionDays)
	}
}
