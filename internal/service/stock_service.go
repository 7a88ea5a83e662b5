package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	ws "garmentflow/internal/websocket"
	"garmentflow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// DTOs

type CreateStockItemRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit" binding:"required"`
	MinimumStock  decimal.Decimal `json:"minimum_stock"`
	Supplier      string          `json:"supplier"`
}

type UpdateStockItemRequest struct {
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit" binding:"required"`
	MinimumStock  decimal.Decimal `json:"minimum_stock"`
	Supplier      string          `json:"supplier"`
}

type StockItemResponse struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit"`
	Supplier      string          `json:"supplier"`
	MinimumStock  decimal.Decimal `json:"minimum_stock"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	IsLowStock    bool            `json:"is_low_stock"`
}

type RecordTransactionRequest struct {
	TransactionType string          `json:"transaction_type" binding:"required,stock_tx_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id" binding:"omitempty,uuid"`
	Notes           string          `json:"notes"`
	PerformedBy     string          `json:"performed_by"`
	TransactionDate *time.Time      `json:"transaction_date"`
}

type LedgerEntryResponse struct {
	Entry        model.LedgerEntry `json:"entry"`
	CurrentStock decimal.Decimal   `json:"current_stock"`
}

type RequirementLine struct {
	Kind             string          `json:"kind" binding:"required,stock_kind"`
	ItemID           string          `json:"item_id" binding:"required,uuid"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	Notes            string          `json:"notes"`
}

type SetRequirementsRequest struct {
	Items []RequirementLine `json:"items" binding:"required,min=1,dive"`
}

type RequirementResponse struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	ItemID           string          `json:"item_id"`
	ItemCode         string          `json:"item_code"`
	ItemName         string          `json:"item_name"`
	Unit             string          `json:"unit"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	QuantityIssued   decimal.Decimal `json:"quantity_issued"`
	QuantityUsed     decimal.Decimal `json:"quantity_used"`
	QuantityWasted   decimal.Decimal `json:"quantity_wasted"`
	QuantityReturned decimal.Decimal `json:"quantity_returned"`
	Shortfall        decimal.Decimal `json:"shortfall"`
	Notes            string          `json:"notes"`
}

type IssueMaterialsRequest struct {
	PerformedBy string `json:"performed_by"`
	Notes       string `json:"notes"`
}

type IssuedLine struct {
	Kind     string          `json:"kind"`
	ItemID   string          `json:"item_id"`
	ItemName string          `json:"item_name"`
	Quantity decimal.Decimal `json:"quantity"`
}

type IssueResult struct {
	OrderID string       `json:"order_id"`
	Issued  []IssuedLine `json:"issued"`
}

type ReturnLine struct {
	Kind             string          `json:"kind" binding:"required,stock_kind"`
	ItemID           string          `json:"item_id" binding:"required,uuid"`
	QuantityReturned decimal.Decimal `json:"quantity_returned"`
	QuantityUsed     decimal.Decimal `json:"quantity_used"`
	QuantityWasted   decimal.Decimal `json:"quantity_wasted"`
}

type ReturnMaterialsRequest struct {
	Items       []ReturnLine `json:"items" binding:"required,min=1,dive"`
	PerformedBy string       `json:"performed_by"`
	Notes       string       `json:"notes"`
}

// ledgerRef ties a ledger row to what caused it
type ledgerRef struct {
	Type string
	ID   *uuid.UUID
}

type StockService interface {
	ListItems(ctx context.Context, kind model.StockItemKind, filter repository.ItemFilter, page, limit int) ([]StockItemResponse, int64, error)
	GetItem(ctx context.Context, kind model.StockItemKind, id string) (*StockItemResponse, error)
	CreateItem(ctx context.Context, actor Actor, kind model.StockItemKind, req CreateStockItemRequest) (*StockItemResponse, error)
	UpdateItem(ctx context.Context, actor Actor, kind model.StockItemKind, id string, req UpdateStockItemRequest) (*StockItemResponse, error)
	DeleteItem(ctx context.Context, actor Actor, kind model.StockItemKind, id string) error
	LowStockItems(ctx context.Context, kind model.StockItemKind) ([]StockItemResponse, error)

	RecordTransaction(ctx context.Context, actor Actor, kind model.StockItemKind, itemID string, req RecordTransactionRequest) (*LedgerEntryResponse, error)
	CurrentStock(ctx context.Context, kind model.StockItemKind, itemID string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, kind model.StockItemKind, itemID string, page, limit int) ([]model.LedgerEntry, int64, error)

	SetRequirements(ctx context.Context, actor Actor, orderID string, req SetRequirementsRequest) ([]RequirementResponse, error)
	ListRequirements(ctx context.Context, orderID string) ([]RequirementResponse, error)
	IssueForOrder(ctx context.Context, actor Actor, orderID string, req IssueMaterialsRequest) (*IssueResult, error)
	ReturnForOrder(ctx context.Context, actor Actor, orderID string, req ReturnMaterialsRequest) ([]RequirementResponse, error)

	ExportItems(ctx context.Context, kind model.StockItemKind, w io.Writer) error
}

type stockService struct {
	stockRepo repository.StockRepository
	orderRepo repository.OrderRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	events    EventPublisher
}

func NewStockService(
	stockRepo repository.StockRepository,
	orderRepo repository.OrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) StockService {
	return &stockService{
		stockRepo: stockRepo,
		orderRepo: orderRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		events:    events,
	}
}

// kinds in issuance order
var stockKinds = []model.StockItemKind{model.KindMaterial, model.KindAccessory}

func parseKind(raw string) (model.StockItemKind, error) {
	kind := model.StockItemKind(raw)
	if !kind.Valid() {
		return "", apperror.Validation(apperror.CodeInvalidInput, "unknown stock kind %q", raw)
	}
	return kind, nil
}

func toStockItemResponse(kind model.StockItemKind, item model.StockItemRecord, current decimal.Decimal) StockItemResponse {
	return StockItemResponse{
		ID:            item.ID.String(),
		Kind:          string(kind),
		Code:          item.Code,
		Name:          item.Name,
		Category:      item.Category,
		Specification: item.Specification,
		Unit:          item.Unit,
		Supplier:      item.Supplier,
		MinimumStock:  item.MinimumStock,
		CurrentStock:  current,
		IsLowStock:    current.LessThanOrEqual(item.MinimumStock),
	}
}

func (s *stockService) ListItems(ctx context.Context, kind model.StockItemKind, filter repository.ItemFilter, page, limit int) ([]StockItemResponse, int64, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := s.stockRepo.ListItems(ctx, kind, filter, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list stock items", err)
	}
	totals, err := s.stockRepo.SumQuantityByItem(ctx, kind)
	if err != nil {
		return nil, 0, apperror.Internal("failed to fold stock ledger", err)
	}

	res := make([]StockItemResponse, 0, len(items))
	for _, item := range items {
		res = append(res, toStockItemResponse(kind, item, totals[item.ID]))
	}
	return res, total, nil
}

func (s *stockService) GetItem(ctx context.Context, kind model.StockItemKind, id string) (*StockItemResponse, error) {
	itemID, err := parseID(id, string(kind))
	if err != nil {
		return nil, err
	}

	item, err := s.stockRepo.FindItem(ctx, kind, itemID)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeItemNotFound, string(kind))
	}
	current, err := s.stockRepo.SumQuantity(ctx, kind, itemID)
	if err != nil {
		return nil, apperror.Internal("failed to fold stock ledger", err)
	}

	resp := toStockItemResponse(kind, *item, current)
	return &resp, nil
}

func (s *stockService) CreateItem(ctx context.Context, actor Actor, kind model.StockItemKind, req CreateStockItemRequest) (*StockItemResponse, error) {
	if req.MinimumStock.IsNegative() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "minimum_stock cannot be negative")
	}

	item := model.StockItemRecord{
		StockItem: model.StockItem{
			Code:          strings.TrimSpace(req.Code),
			Name:          req.Name,
			Category:      req.Category,
			Specification: req.Specification,
			Unit:          req.Unit,
			MinimumStock:  req.MinimumStock,
			Supplier:      req.Supplier,
		},
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.stockRepo.FindItemByCode(txCtx, kind, item.Code); err == nil {
			return apperror.Conflict(apperror.CodeDuplicate, "%s code %s already exists", kind, item.Code)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Internal("failed to check item code", err)
		}

		// codes of deleted items stay reserved for their ledger history
		if err := s.stockRepo.CreateItem(txCtx, kind, &item); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "%s code %s is already in use", kind, item.Code)
			}
			return apperror.Internal("failed to create stock item", err)
		}

		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionCreateItem, item.ID.String(), item.Code, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toStockItemResponse(kind, item, decimal.Zero)
	return &resp, nil
}

func (s *stockService) UpdateItem(ctx context.Context, actor Actor, kind model.StockItemKind, id string, req UpdateStockItemRequest) (*StockItemResponse, error) {
	itemID, err := parseID(id, string(kind))
	if err != nil {
		return nil, err
	}
	if req.MinimumStock.IsNegative() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "minimum_stock cannot be negative")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.stockRepo.FindItemForUpdate(txCtx, kind, itemID)
		if err != nil {
			return lookupErr(err, apperror.CodeItemNotFound, string(kind))
		}

		item.Name = req.Name
		item.Category = req.Category
		item.Specification = req.Specification
		item.Unit = req.Unit
		item.MinimumStock = req.MinimumStock
		item.Supplier = req.Supplier

		if err := s.stockRepo.UpdateItem(txCtx, kind, item); err != nil {
			return apperror.Internal("failed to update stock item", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionUpdateItem, item.ID.String(), item.Code, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetItem(ctx, kind, id)
}

// DeleteItem soft-deletes an item whose ledger balances to zero
func (s *stockService) DeleteItem(ctx context.Context, actor Actor, kind model.StockItemKind, id string) error {
	itemID, err := parseID(id, string(kind))
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.stockRepo.FindItemForUpdate(txCtx, kind, itemID)
		if err != nil {
			return lookupErr(err, apperror.CodeItemNotFound, string(kind))
		}

		current, err := s.stockRepo.SumQuantity(txCtx, kind, itemID)
		if err != nil {
			return apperror.Internal("failed to fold stock ledger", err)
		}
		if !current.IsZero() {
			return apperror.Conflict(apperror.CodeInvalidInput, "%s %s still holds %s %s", kind, item.Code, current.String(), item.Unit)
		}

		if err := s.stockRepo.DeleteItem(txCtx, kind, itemID); err != nil {
			return apperror.Internal("failed to delete stock item", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionDeleteItem, item.ID.String(), item.Code, map[string]bool{"deleted": true}))
	})
}

func (s *stockService) LowStockItems(ctx context.Context, kind model.StockItemKind) ([]StockItemResponse, error) {
	items, err := s.stockRepo.ListAllItems(ctx, kind)
	if err != nil {
		return nil, apperror.Internal("failed to list stock items", err)
	}
	totals, err := s.stockRepo.SumQuantityByItem(ctx, kind)
	if err != nil {
		return nil, apperror.Internal("failed to fold stock ledger", err)
	}

	res := make([]StockItemResponse, 0)
	for _, item := range items {
		resp := toStockItemResponse(kind, item, totals[item.ID])
		if resp.IsLowStock {
			res = append(res, resp)
		}
	}
	return res, nil
}

func (s *stockService) RecordTransaction(ctx context.Context, actor Actor, kind model.StockItemKind, itemID string, req RecordTransactionRequest) (*LedgerEntryResponse, error) {
	id, err := parseID(itemID, string(kind))
	if err != nil {
		return nil, err
	}

	ref := ledgerRef{Type: req.ReferenceType}
	if ref.Type == "" {
		ref.Type = model.RefTypeManual
	}
	if req.ReferenceID != "" {
		refID, err := parseID(req.ReferenceID, "reference")
		if err != nil {
			return nil, err
		}
		ref.ID = &refID
	}

	performedBy := req.PerformedBy
	if performedBy == "" {
		performedBy = actor.name()
	}
	at := time.Now().UTC()
	if req.TransactionDate != nil {
		at = req.TransactionDate.UTC()
	}

	var resp LedgerEntryResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.stockRepo.FindItemForUpdate(txCtx, kind, id)
		if err != nil {
			return lookupErr(err, apperror.CodeItemNotFound, string(kind))
		}

		entry, current, err := s.record(txCtx, kind, item, req.TransactionType, req.Quantity, req.Unit, ref, performedBy, req.Notes, at)
		if err != nil {
			return err
		}

		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionStockMovement, item.ID.String(), item.Code, entry.StockTransaction)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}

		resp = LedgerEntryResponse{Entry: *entry, CurrentStock: current}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, ws.EventStockChanged, map[string]interface{}{
		"kind":          kind,
		"item_id":       itemID,
		"current_stock": resp.CurrentStock,
	})
	return &resp, nil
}

// record appends one ledger row for an item the caller has locked and returns
// the row together with the item's new balance. The sign convention is
// applied here: out rows are stored negated, adjustments keep their sign.
func (s *stockService) record(
	ctx context.Context,
	kind model.StockItemKind,
	item *model.StockItemRecord,
	txType string,
	quantity decimal.Decimal,
	unit string,
	ref ledgerRef,
	performedBy, notes string,
	at time.Time,
) (*model.LedgerEntry, decimal.Decimal, error) {
	current, err := s.stockRepo.SumQuantity(ctx, kind, item.ID)
	if err != nil {
		return nil, decimal.Zero, apperror.Internal("failed to fold stock ledger", err)
	}

	var signed decimal.Decimal
	switch txType {
	case model.TxTypeIn, model.TxTypeReturn, model.TxTypeOut:
		if !quantity.IsPositive() {
			return nil, decimal.Zero, apperror.Validation(apperror.CodeInvalidInput, "quantity must be greater than zero")
		}
		signed = quantity
		if txType == model.TxTypeOut {
			signed = quantity.Neg()
		}
	case model.TxTypeAdjustment:
		if quantity.IsZero() {
			return nil, decimal.Zero, apperror.Validation(apperror.CodeInvalidInput, "adjustment quantity cannot be zero")
		}
		signed = quantity
	default:
		return nil, decimal.Zero, apperror.Validation(apperror.CodeInvalidInput, "unknown transaction type %q", txType)
	}

	if signed.IsNegative() && current.LessThan(signed.Neg()) {
		return nil, decimal.Zero, apperror.Conflict(apperror.CodeInsufficientStock,
			"insufficient stock for %s: available %s %s, requested %s",
			item.Name, current.String(), item.Unit, signed.Neg().String())
	}

	if unit == "" {
		unit = item.Unit
	}
	entry := &model.LedgerEntry{
		StockTransaction: model.StockTransaction{
			ItemID:          item.ID,
			TransactionType: txType,
			Quantity:        signed,
			Unit:            unit,
			ReferenceType:   ref.Type,
			ReferenceID:     ref.ID,
			Notes:           notes,
			PerformedBy:     performedBy,
			TransactionDate: at,
		},
	}
	if err := s.stockRepo.CreateEntry(ctx, kind, entry); err != nil {
		return nil, decimal.Zero, apperror.Internal("failed to write ledger row", err)
	}

	return entry, current.Add(signed), nil
}

func (s *stockService) CurrentStock(ctx context.Context, kind model.StockItemKind, itemID string) (decimal.Decimal, error) {
	id, err := parseID(itemID, string(kind))
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := s.stockRepo.FindItem(ctx, kind, id); err != nil {
		return decimal.Zero, lookupErr(err, apperror.CodeItemNotFound, string(kind))
	}

	current, err := s.stockRepo.SumQuantity(ctx, kind, id)
	if err != nil {
		return decimal.Zero, apperror.Internal("failed to fold stock ledger", err)
	}
	return current, nil
}

func (s *stockService) ListTransactions(ctx context.Context, kind model.StockItemKind, itemID string, page, limit int) ([]model.LedgerEntry, int64, error) {
	id, err := parseID(itemID, string(kind))
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)

	entries, total, err := s.stockRepo.ListEntries(ctx, kind, id, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list ledger rows", err)
	}
	return entries, total, nil
}

func (s *stockService) SetRequirements(ctx context.Context, actor Actor, orderID string, req SetRequirementsRequest) ([]RequirementResponse, error) {
	id, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}

		for _, line := range req.Items {
			kind, err := parseKind(line.Kind)
			if err != nil {
				return err
			}
			itemID, err := parseID(line.ItemID, line.Kind)
			if err != nil {
				return err
			}
			if !line.QuantityRequired.IsPositive() {
				return apperror.Validation(apperror.CodeInvalidInput, "quantity_required must be greater than zero")
			}
			if _, err := s.stockRepo.FindItem(txCtx, kind, itemID); err != nil {
				return lookupErr(err, apperror.CodeItemNotFound, line.Kind)
			}

			rec, err := s.stockRepo.FindRequirement(txCtx, kind, order.ID, itemID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rec = &model.RequirementRecord{
					OrderItemRequirement: model.OrderItemRequirement{OrderID: order.ID, ItemID: itemID},
				}
			} else if err != nil {
				return apperror.Internal("failed to load requirement", err)
			}

			rec.QuantityRequired = line.QuantityRequired
			rec.Notes = line.Notes
			if err := s.stockRepo.SaveRequirement(txCtx, kind, rec); err != nil {
				return apperror.Internal("failed to save requirement", err)
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionSetRequirements, order.ID.String(), order.OrderNumber, req))
	})
	if err != nil {
		return nil, err
	}

	return s.ListRequirements(ctx, orderID)
}

func (s *stockService) ListRequirements(ctx context.Context, orderID string) ([]RequirementResponse, error) {
	id, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}
	if _, err := s.orderRepo.FindByID(ctx, id); err != nil {
		return nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}

	res := make([]RequirementResponse, 0)
	for _, kind := range stockKinds {
		reqs, err := s.stockRepo.ListRequirements(ctx, kind, id)
		if err != nil {
			return nil, apperror.Internal("failed to list requirements", err)
		}
		for _, r := range reqs {
			item, err := s.stockRepo.FindItem(ctx, kind, r.ItemID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.Internal("failed to load stock item", err)
			}
			res = append(res, toRequirementResponse(kind, r, item))
		}
	}
	return res, nil
}

func toRequirementResponse(kind model.StockItemKind, r model.RequirementRecord, item *model.StockItemRecord) RequirementResponse {
	resp := RequirementResponse{
		ID:               r.ID.String(),
		Kind:             string(kind),
		ItemID:           r.ItemID.String(),
		QuantityRequired: r.QuantityRequired,
		QuantityIssued:   r.QuantityIssued,
		QuantityUsed:     r.QuantityUsed,
		QuantityWasted:   r.QuantityWasted,
		QuantityReturned: r.QuantityReturned,
		Shortfall:        decimal.Max(r.Shortfall(), decimal.Zero),
		Notes:            r.Notes,
	}
	if item != nil {
		resp.ItemCode = item.Code
		resp.ItemName = item.Name
		resp.Unit = item.Unit
	}
	return resp
}

// IssueForOrder issues every outstanding requirement of an order from stock.
// Either every shortfall is issued or nothing is.
func (s *stockService) IssueForOrder(ctx context.Context, actor Actor, orderID string, req IssueMaterialsRequest) (*IssueResult, error) {
	id, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}

	performedBy := req.PerformedBy
	if performedBy == "" {
		performedBy = actor.name()
	}

	result := &IssueResult{OrderID: orderID, Issued: make([]IssuedLine, 0)}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}

		now := time.Now().UTC()
		ref := ledgerRef{Type: model.RefTypeOrder, ID: &order.ID}
		for _, kind := range stockKinds {
			reqs, err := s.stockRepo.ListRequirements(txCtx, kind, order.ID)
			if err != nil {
				return apperror.Internal("failed to list requirements", err)
			}

			for i := range reqs {
				rec := &reqs[i]
				shortfall := rec.Shortfall()
				if !shortfall.IsPositive() {
					continue
				}

				item, err := s.stockRepo.FindItemForUpdate(txCtx, kind, rec.ItemID)
				if err != nil {
					return lookupErr(err, apperror.CodeItemNotFound, string(kind))
				}

				notes := fmt.Sprintf("issued for order %s", order.OrderNumber)
				if req.Notes != "" {
					notes += ": " + req.Notes
				}
				if _, _, err := s.record(txCtx, kind, item, model.TxTypeOut, shortfall, "", ref, performedBy, notes, now); err != nil {
					return err
				}

				rec.QuantityIssued = rec.QuantityIssued.Add(shortfall)
				if err := s.stockRepo.SaveRequirement(txCtx, kind, rec); err != nil {
					return apperror.Internal("failed to update requirement", err)
				}

				result.Issued = append(result.Issued, IssuedLine{
					Kind:     string(kind),
					ItemID:   item.ID.String(),
					ItemName: item.Name,
					Quantity: shortfall,
				})
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionIssueMaterials, order.ID.String(), order.OrderNumber, result.Issued))
	})
	if err != nil {
		return nil, err
	}

	if len(result.Issued) > 0 {
		publish(s.events, ws.EventStockChanged, map[string]interface{}{
			"order_id": orderID,
			"issued":   result.Issued,
		})
	}
	return result, nil
}

// ReturnForOrder books leftovers back into stock and records usage and waste
func (s *stockService) ReturnForOrder(ctx context.Context, actor Actor, orderID string, req ReturnMaterialsRequest) ([]RequirementResponse, error) {
	id, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}

	performedBy := req.PerformedBy
	if performedBy == "" {
		performedBy = actor.name()
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}

		now := time.Now().UTC()
		ref := ledgerRef{Type: model.RefTypeOrder, ID: &order.ID}
		for _, line := range req.Items {
			kind, err := parseKind(line.Kind)
			if err != nil {
				return err
			}
			itemID, err := parseID(line.ItemID, line.Kind)
			if err != nil {
				return err
			}
			if line.QuantityReturned.IsNegative() || line.QuantityUsed.IsNegative() || line.QuantityWasted.IsNegative() {
				return apperror.Validation(apperror.CodeInvalidInput, "quantities cannot be negative")
			}

			rec, err := s.stockRepo.FindRequirement(txCtx, kind, order.ID, itemID)
			if err != nil {
				return lookupErr(err, apperror.CodeItemNotFound, "requirement")
			}

			accounted := rec.QuantityReturned.Add(rec.QuantityUsed).Add(rec.QuantityWasted).
				Add(line.QuantityReturned).Add(line.QuantityUsed).Add(line.QuantityWasted)
			if accounted.GreaterThan(rec.QuantityIssued) {
				return apperror.Validation(apperror.CodeInvalidInput,
					"returned, used and wasted quantities exceed the %s issued", rec.QuantityIssued.String())
			}

			if line.QuantityReturned.IsPositive() {
				item, err := s.stockRepo.FindItemForUpdate(txCtx, kind, itemID)
				if err != nil {
					return lookupErr(err, apperror.CodeItemNotFound, line.Kind)
				}
				notes := fmt.Sprintf("returned from order %s", order.OrderNumber)
				if req.Notes != "" {
					notes += ": " + req.Notes
				}
				if _, _, err := s.record(txCtx, kind, item, model.TxTypeReturn, line.QuantityReturned, "", ref, performedBy, notes, now); err != nil {
					return err
				}
			}

			rec.QuantityReturned = rec.QuantityReturned.Add(line.QuantityReturned)
			rec.QuantityUsed = rec.QuantityUsed.Add(line.QuantityUsed)
			rec.QuantityWasted = rec.QuantityWasted.Add(line.QuantityWasted)
			if err := s.stockRepo.SaveRequirement(txCtx, kind, rec); err != nil {
				return apperror.Internal("failed to update requirement", err)
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionReturnMaterials, order.ID.String(), order.OrderNumber, req.Items))
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, ws.EventStockChanged, map[string]interface{}{"order_id": orderID, "returned": req.Items})
	return s.ListRequirements(ctx, orderID)
}

var exportHeaders = []string{"Code", "Name", "Category", "Specification", "Unit", "Supplier", "Minimum Stock", "Current Stock", "Low Stock"}

// ExportItems writes every item with its current balance as an xlsx workbook
func (s *stockService) ExportItems(ctx context.Context, kind model.StockItemKind, w io.Writer) error {
	items, err := s.stockRepo.ListAllItems(ctx, kind)
	if err != nil {
		return apperror.Internal("failed to list stock items", err)
	}
	totals, err := s.stockRepo.SumQuantityByItem(ctx, kind)
	if err != nil {
		return apperror.Internal("failed to fold stock ledger", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Sheet1"
	for col, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return apperror.Internal("failed to write export header", err)
		}
	}

	for i, item := range items {
		resp := toStockItemResponse(kind, item, totals[item.ID])
		row := []interface{}{
			resp.Code,
			resp.Name,
			resp.Category,
			resp.Specification,
			resp.Unit,
			resp.Supplier,
			resp.MinimumStock.InexactFloat64(),
			resp.CurrentStock.InexactFloat64(),
			resp.IsLowStock,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return apperror.Internal("failed to write export row", err)
		}
	}

	if err := f.Write(w); err != nil {
		return apperror.Internal("failed to write workbook", err)
	}
	return nil
}
