package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"garmentflow/internal/database"
	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testActor = Actor{Username: "ppic.anna", Role: model.RoleAdmin}

// eventLog records published events in order
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) Publish(event string, _ interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type testEnv struct {
	db        *gorm.DB
	events    *eventLog
	orders    OrderService
	process   ProcessService
	stock     StockService
	master    MasterService
	dashboard DashboardService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(newTestDB(t))
}

// newTestEnvOn wires the services over an already migrated database
func newTestEnvOn(db *gorm.DB) *testEnv {
	events := &eventLog{}

	txManager := repository.NewTransactionManager(db)
	orderRepo := repository.NewOrderRepository(db)
	processRepo := repository.NewProcessRepository(db)
	masterRepo := repository.NewMasterRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	stock := NewStockService(repository.NewStockRepository(db), orderRepo, auditRepo, txManager, events)
	return &testEnv{
		db:        db,
		events:    events,
		orders:    NewOrderService(orderRepo, processRepo, masterRepo, auditRepo, txManager),
		process:   NewProcessService(orderRepo, processRepo, repository.NewTransferRepository(db), repository.NewRejectRepository(db), txManager, events),
		stock:     stock,
		master:    NewMasterService(masterRepo, auditRepo, txManager),
		dashboard: NewDashboardService(repository.NewDashboardRepository(db), stock),
	}
}

// seedStyle creates a buyer with one style and returns both ids
func (e *testEnv) seedStyle(t *testing.T) (buyerID, styleID string) {
	t.Helper()
	ctx := context.Background()

	buyer, err := e.master.CreateBuyer(ctx, testActor, BuyerRequest{Code: "nrd", Name: "Nordic Outdoor", Country: "SE"})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	style, err := e.master.CreateStyle(ctx, testActor, StyleRequest{
		BuyerID:   buyer.ID.String(),
		StyleCode: "NRD-PL-01",
		Name:      "Polo shirt",
		Article:   "PL01",
	})
	if err != nil {
		t.Fatalf("create style: %v", err)
	}
	return buyer.ID.String(), style.ID.String()
}

// newOrderRequest builds the 500-piece S/M/L/XL order used across tests
func newOrderRequest(buyerID, styleID string) CreateOrderRequest {
	production := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return CreateOrderRequest{
		BuyerID:            buyerID,
		StyleID:            styleID,
		TotalQuantity:      500,
		ProductionDeadline: production,
		DeliveryDeadline:   production.AddDate(0, 0, 14),
		Sizes: []SizeQuantityRequest{
			{Size: "S", Quantity: 50},
			{Size: "M", Quantity: 150},
			{Size: "L", Quantity: 200},
			{Size: "XL", Quantity: 100},
		},
	}
}

func (e *testEnv) createOrder(t *testing.T) *model.Order {
	t.Helper()
	buyerID, styleID := e.seedStyle(t)
	order, err := e.orders.CreateOrder(context.Background(), testActor, newOrderRequest(buyerID, styleID))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (e *testEnv) assign(t *testing.T, orderID string, process model.ProcessName) *AssignResult {
	t.Helper()
	res, err := e.process.AssignNext(context.Background(), AssignNextRequest{
		OrderID:         orderID,
		NextProcessName: string(process),
		AssignedBy:      "ppic.anna",
	})
	if err != nil {
		t.Fatalf("assign %s: %v", process, err)
	}
	return res
}

// runStep starts and completes a step with the given output
func (e *testEnv) runStep(t *testing.T, stepID string, completed int) *model.ProcessStep {
	t.Helper()
	ctx := context.Background()
	if _, err := e.process.StartStep(ctx, stepID, StartStepRequest{ReceivedBy: "line.lead"}); err != nil {
		t.Fatalf("start step: %v", err)
	}
	step, err := e.process.CompleteStep(ctx, stepID, CompleteStepRequest{QuantityCompleted: completed, CompletedBy: "line.lead"})
	if err != nil {
		t.Fatalf("complete step: %v", err)
	}
	return step
}

func (e *testEnv) count(t *testing.T, value interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperror.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
