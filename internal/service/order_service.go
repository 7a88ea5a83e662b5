package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"garmentflow/internal/logger"
	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"
	"garmentflow/pkg/barcode"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DTOs

type SizeQuantityRequest struct {
	Size        string `json:"size" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	BundleCount int    `json:"bundle_count" binding:"gte=0"`
}

type CreateOrderRequest struct {
	BuyerID            string                `json:"buyer_id" binding:"required,uuid"`
	StyleID            string                `json:"style_id" binding:"required,uuid"`
	Article            string                `json:"article"`
	TotalQuantity      int                   `json:"total_quantity" binding:"required,gt=0"`
	ProductionDeadline time.Time             `json:"production_deadline" binding:"required"`
	DeliveryDeadline   time.Time             `json:"delivery_deadline" binding:"required"`
	Priority           string                `json:"priority" binding:"omitempty,oneof=normal urgent"`
	Notes              string                `json:"notes"`
	Sizes              []SizeQuantityRequest `json:"sizes" binding:"required,min=1,dive"`
}

type UpdateOrderRequest struct {
	ProductionDeadline *time.Time `json:"production_deadline"`
	DeliveryDeadline   *time.Time `json:"delivery_deadline"`
	Priority           *string    `json:"priority" binding:"omitempty,oneof=normal urgent"`
	Notes              *string    `json:"notes"`
}

type BundleLabel struct {
	Size         string `json:"size"`
	BundleNumber int    `json:"bundle_number"`
	Quantity     int    `json:"quantity"`
	Barcode      string `json:"barcode"`
}

type OrderBarcodes struct {
	OrderNumber  string        `json:"order_number"`
	OrderBarcode string        `json:"order_barcode"`
	Bundles      []BundleLabel `json:"bundles"`
}

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

type ScanResult struct {
	Barcode        barcode.Parsed     `json:"barcode"`
	Order          *model.Order       `json:"order"`
	CurrentProcess model.ProcessName  `json:"current_process"`
	CurrentStep    *model.ProcessStep `json:"current_step,omitempty"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error)
	UpdateOrder(ctx context.Context, actor Actor, id string, req UpdateOrderRequest) (*model.Order, error)
	DeleteOrder(ctx context.Context, actor Actor, id string) error
	Timeline(ctx context.Context, id string) ([]model.ProcessTransition, error)
	Barcodes(ctx context.Context, id string) (*OrderBarcodes, error)
	Scan(ctx context.Context, code string) (*ScanResult, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	processRepo repository.ProcessRepository
	masterRepo  repository.MasterRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	processRepo repository.ProcessRepository,
	masterRepo repository.MasterRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		processRepo: processRepo,
		masterRepo:  masterRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// defaultBundles splits a size quantity into bundles of DefaultBundleSize
func defaultBundles(quantity int) int {
	return (quantity + model.DefaultBundleSize - 1) / model.DefaultBundleSize
}

func checkDeadlines(production, delivery time.Time) error {
	if production.IsZero() {
		return apperror.Validation(apperror.CodeMissingField, "production_deadline is required")
	}
	if delivery.IsZero() {
		return apperror.Validation(apperror.CodeMissingField, "delivery_deadline is required")
	}
	if !delivery.After(production) {
		return apperror.Validation(apperror.CodeInvalidDeadlines, "delivery deadline must be after production deadline")
	}
	return nil
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Order, error) {
	if req.TotalQuantity <= 0 {
		return nil, apperror.Validation(apperror.CodeMissingField, "total_quantity is required")
	}
	if len(req.Sizes) == 0 {
		return nil, apperror.Validation(apperror.CodeMissingField, "sizes is required")
	}
	if err := checkDeadlines(req.ProductionDeadline, req.DeliveryDeadline); err != nil {
		return nil, err
	}

	sizes := make([]model.SizeBreakdown, 0, len(req.Sizes))
	seen := make(map[string]bool, len(req.Sizes))
	sizeTotal := 0
	for i, sz := range req.Sizes {
		label := strings.ToUpper(strings.TrimSpace(sz.Size))
		if label == "" {
			return nil, apperror.Validation(apperror.CodeMissingField, "size label is required")
		}
		if sz.Quantity <= 0 {
			return nil, apperror.Validation(apperror.CodeInvalidInput, "quantity for size %s must be greater than zero", label)
		}
		if seen[label] {
			return nil, apperror.Validation(apperror.CodeInvalidInput, "size %s is listed twice", label)
		}
		seen[label] = true

		bundles := sz.BundleCount
		if bundles <= 0 {
			bundles = defaultBundles(sz.Quantity)
		}
		sizes = append(sizes, model.SizeBreakdown{
			Size:        label,
			Position:    i,
			Quantity:    sz.Quantity,
			BundleCount: bundles,
		})
		sizeTotal += sz.Quantity
	}

	buyerID, err := parseID(req.BuyerID, "buyer")
	if err != nil {
		return nil, err
	}
	styleID, err := parseID(req.StyleID, "style")
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	var order model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.masterRepo.FindBuyer(txCtx, buyerID); err != nil {
			return lookupErr(err, apperror.CodeNotFound, "buyer")
		}
		style, err := s.masterRepo.FindStyle(txCtx, styleID)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "style")
		}
		if style.BuyerID != buyerID {
			return apperror.Validation(apperror.CodeInvalidInput, "style %s does not belong to the selected buyer", style.StyleCode)
		}

		now := time.Now().UTC()
		number, err := s.orderRepo.NextOrderNumber(txCtx, now.Year())
		if err != nil {
			return apperror.Internal("failed to generate order number", err)
		}

		article := req.Article
		if article == "" {
			article = style.Article
		}

		order = model.Order{
			OrderNumber:        number,
			BuyerID:            buyerID,
			StyleID:            styleID,
			Article:            article,
			TotalQuantity:      req.TotalQuantity,
			ProductionDeadline: req.ProductionDeadline.UTC(),
			DeliveryDeadline:   req.DeliveryDeadline.UTC(),
			Priority:           priority,
			Notes:              req.Notes,
			CurrentPhase:       model.PhaseProduction,
			CurrentProcess:     model.ProcessDraft,
			CurrentState:       model.StateAtPPIC,
			CreatedBy:          actor.name(),
			SizeBreakdowns:     sizes,
		}
		if err := s.orderRepo.Create(txCtx, &order); err != nil {
			return apperror.Internal("failed to create order", err)
		}

		placeholder := &model.ProcessStep{
			OrderID:       order.ID,
			ProcessName:   model.ProcessDraft,
			ProcessPhase:  model.PhaseProduction,
			Department:    model.DeptPPIC,
			SequenceOrder: 0,
			Status:        model.StepPending,
			AssignedBy:    actor.name(),
		}
		if err := s.processRepo.CreateStep(txCtx, placeholder); err != nil {
			return apperror.Internal("failed to create placeholder step", err)
		}

		transition := &model.ProcessTransition{
			OrderID:        order.ID,
			ProcessStepID:  &placeholder.ID,
			FromState:      "",
			ToState:        model.StateAtPPIC,
			TransitionTime: now,
			PerformedBy:    actor.name(),
			ProcessName:    model.ProcessDraft,
			Department:     model.DeptPPIC,
			Quantity:       order.TotalQuantity,
			Notes:          "order created",
		}
		if err := s.processRepo.CreateTransition(txCtx, transition); err != nil {
			return apperror.Internal("failed to write transition", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sizeTotal != req.TotalQuantity {
		logger.Get().WithFields(logrus.Fields{
			"order_number":   order.OrderNumber,
			"total_quantity": req.TotalQuantity,
			"size_total":     sizeTotal,
		}).Warn("size breakdown does not add up to order quantity")
	}

	return s.GetOrder(ctx, order.ID.String())
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	orderID, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindDetail(ctx, orderID)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error) {
	page, limit = normalizePage(page, limit)

	orders, total, err := s.orderRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list orders", err)
	}
	return orders, total, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, actor Actor, id string, req UpdateOrderRequest) (*model.Order, error) {
	orderID, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}

		production, delivery := order.ProductionDeadline, order.DeliveryDeadline
		if req.ProductionDeadline != nil {
			production = req.ProductionDeadline.UTC()
		}
		if req.DeliveryDeadline != nil {
			delivery = req.DeliveryDeadline.UTC()
		}
		if err := checkDeadlines(production, delivery); err != nil {
			return err
		}

		order.ProductionDeadline = production
		order.DeliveryDeadline = delivery
		if req.Priority != nil {
			order.Priority = *req.Priority
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return apperror.Internal("failed to update order", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionUpdateOrder, order.ID.String(), order.OrderNumber, req))
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, id)
}

// DeleteOrder removes an order with everything it owns. Only admins may do this.
func (s *orderService) DeleteOrder(ctx context.Context, actor Actor, id string) error {
	if actor.Role != model.RoleAdmin {
		return apperror.Forbidden("only administrators can delete orders")
	}

	orderID, err := parseID(id, "order")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}

		if err := s.orderRepo.Delete(txCtx, order.ID); err != nil {
			return apperror.Internal("failed to delete order", err)
		}

		details := map[string]interface{}{
			"order_number":    order.OrderNumber,
			"current_process": order.CurrentProcess,
			"total_quantity":  order.TotalQuantity,
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionDeleteOrder, order.ID.String(), order.OrderNumber, details))
	})
}

func (s *orderService) Timeline(ctx context.Context, id string) ([]model.ProcessTransition, error) {
	orderID, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}

	transitions, err := s.processRepo.ListTransitionsByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("failed to load transitions", err)
	}
	return transitions, nil
}

// Barcodes returns the order ticket code and one tag code per bundle.
// Bundle quantities split a size evenly, the first bundles taking the remainder.
func (s *orderService) Barcodes(ctx context.Context, id string) (*OrderBarcodes, error) {
	orderID, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}
	sizes, err := s.orderRepo.ListSizeBreakdowns(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("failed to load sizes", err)
	}

	res := &OrderBarcodes{
		OrderNumber:  order.OrderNumber,
		OrderBarcode: barcode.OrderBarcode(order.OrderNumber, order.Article),
		Bundles:      make([]BundleLabel, 0),
	}
	for _, sz := range sizes {
		count := sz.BundleCount
		if count <= 0 {
			count = defaultBundles(sz.Quantity)
		}
		base, extra := sz.Quantity/count, sz.Quantity%count
		for n := 1; n <= count; n++ {
			qty := base
			if n <= extra {
				qty++
			}
			res.Bundles = append(res.Bundles, BundleLabel{
				Size:         sz.Size,
				BundleNumber: n,
				Quantity:     qty,
				Barcode:      barcode.BundleBarcode(order.OrderNumber, order.Article, sz.Size, n),
			})
		}
	}
	return res, nil
}

// Scan decodes a ticket or bundle code and resolves the order it belongs to
func (s *orderService) Scan(ctx context.Context, code string) (*ScanResult, error) {
	parsed, err := barcode.Parse(code)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "unrecognised barcode %q", code)
	}

	order, err := s.orderRepo.FindByNumber(ctx, parsed.OrderNumber)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}

	res := &ScanResult{Barcode: parsed, Order: order, CurrentProcess: order.CurrentProcess}

	steps, err := s.processRepo.ListStepsByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal("failed to load process steps", err)
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].ProcessName == order.CurrentProcess {
			res.CurrentStep = &steps[i]
			break
		}
	}
	return res, nil
}

// describeProcess renders a process name for messages
func describeProcess(p model.ProcessName) string {
	if p == "" || p == model.ProcessDraft {
		return "PPIC (no completed process)"
	}
	if def, ok := model.LookupProcess(p); ok {
		return def.Label
	}
	return fmt.Sprintf("%q", string(p))
}
