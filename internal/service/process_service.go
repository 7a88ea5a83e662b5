package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"garmentflow/internal/logger"
	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	ws "garmentflow/internal/websocket"
	"garmentflow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DTOs

type AssignNextRequest struct {
	OrderID         string `json:"order_id" binding:"required,uuid"`
	NextProcessName string `json:"next_process_name" binding:"required,process_name"`
	AssignedBy      string `json:"assigned_by" binding:"required"`
	Notes           string `json:"notes"`
}

type AssignResult struct {
	Order    *model.Order       `json:"order"`
	Step     *model.ProcessStep `json:"process_step"`
	Transfer *model.TransferLog `json:"transfer"`
}

type StartStepRequest struct {
	QuantityReceived *int   `json:"quantity_received" binding:"omitempty,gte=0"`
	ReceivedBy       string `json:"received_by"`
	Notes            string `json:"notes"`
}

type SizeCompletion struct {
	Size      string `json:"size" binding:"required"`
	Completed int    `json:"completed" binding:"gte=0"`
}

type CompleteStepRequest struct {
	QuantityCompleted int              `json:"quantity_completed" binding:"gte=0"`
	Sizes             []SizeCompletion `json:"sizes" binding:"omitempty,dive"`
	CompletedBy       string           `json:"completed_by"`
	Notes             string           `json:"notes"`
}

type RecordRejectRequest struct {
	RejectType     string `json:"reject_type" binding:"required"`
	RejectCategory string `json:"reject_category" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	Size           string `json:"size"`
	Description    string `json:"description" binding:"required"`
	RootCause      string `json:"root_cause"`
	Action         string `json:"action" binding:"required"`
	ReportedBy     string `json:"reported_by" binding:"required"`
}

type CompleteReworkRequest struct {
	PerformedBy string `json:"performed_by"`
	Notes       string `json:"notes"`
}

type HoldRequest struct {
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason"`
}

type StepDetail struct {
	Step    *model.ProcessStep `json:"process_step"`
	Rejects []model.RejectLog  `json:"rejects"`
}

type ProcessService interface {
	Catalog() []model.ProcessDefinition
	AssignNext(ctx context.Context, req AssignNextRequest) (*AssignResult, error)
	StartStep(ctx context.Context, stepID string, req StartStepRequest) (*model.ProcessStep, error)
	ReceiveTransfer(ctx context.Context, transferID string, req StartStepRequest) (*model.TransferLog, error)
	CompleteStep(ctx context.Context, stepID string, req CompleteStepRequest) (*model.ProcessStep, error)
	RecordReject(ctx context.Context, stepID string, req RecordRejectRequest) (*model.RejectLog, error)
	CompleteRework(ctx context.Context, rejectID string, req CompleteReworkRequest) (*model.RejectLog, error)
	HoldOrder(ctx context.Context, orderID string, req HoldRequest) (*model.Order, error)
	ResumeOrder(ctx context.Context, orderID string, req HoldRequest) (*model.Order, error)

	GetStep(ctx context.Context, stepID string) (*StepDetail, error)
	ListSteps(ctx context.Context, filter repository.StepFilter, page, limit int) ([]model.ProcessStep, int64, error)
	GetTransfer(ctx context.Context, transferID string) (*model.TransferLog, error)
	ListTransfers(ctx context.Context, filter repository.TransferFilter, page, limit int) ([]model.TransferLog, int64, error)
}

type processService struct {
	orderRepo    repository.OrderRepository
	processRepo  repository.ProcessRepository
	transferRepo repository.TransferRepository
	rejectRepo   repository.RejectRepository
	txManager    repository.TransactionManager
	events       EventPublisher
}

func NewProcessService(
	orderRepo repository.OrderRepository,
	processRepo repository.ProcessRepository,
	transferRepo repository.TransferRepository,
	rejectRepo repository.RejectRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) ProcessService {
	return &processService{
		orderRepo:    orderRepo,
		processRepo:  processRepo,
		transferRepo: transferRepo,
		rejectRepo:   rejectRepo,
		txManager:    txManager,
		events:       events,
	}
}

func (s *processService) Catalog() []model.ProcessDefinition {
	return model.ProcessCatalog()
}

// AssignNext moves an order from its last completed process to next. The
// order row is locked for the whole transaction so concurrent assignments
// for one order run one after the other.
func (s *processService) AssignNext(ctx context.Context, req AssignNextRequest) (*AssignResult, error) {
	def, ok := model.LookupProcess(model.ProcessName(req.NextProcessName))
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "unknown process %q", req.NextProcessName)
	}
	if strings.TrimSpace(req.AssignedBy) == "" {
		return nil, apperror.Validation(apperror.CodeMissingField, "assigned_by is required")
	}
	orderID, err := parseID(req.OrderID, "order")
	if err != nil {
		return nil, err
	}

	var result AssignResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}
		if order.IsDelivered() {
			return apperror.Conflict(apperror.CodeOrderDelivered, "order %s is already delivered", order.OrderNumber)
		}
		if order.CurrentState == model.StateOnHold {
			return apperror.Conflict(apperror.CodeOrderOnHold, "order %s is on hold", order.OrderNumber)
		}

		steps, err := s.processRepo.ListStepsByOrder(txCtx, order.ID)
		if err != nil {
			return apperror.Internal("failed to load process steps", err)
		}

		for _, st := range steps {
			if st.ProcessName == def.Name && st.IsActive() {
				return apperror.Conflict(apperror.CodeProcessAlreadyActive,
					"%s is already %s for order %s", def.Label, st.Status, order.OrderNumber)
			}
		}

		var placeholder, lastCompleted *model.ProcessStep
		for i := range steps {
			st := &steps[i]
			switch {
			case st.ProcessName == model.ProcessDraft:
				if st.Status == model.StepPending {
					placeholder = st
				}
			case st.IsActive():
				return apperror.Conflict(apperror.CodeCurrentProcessIncomplete,
					"%s must be completed before assigning %s", describeProcess(st.ProcessName), def.Label)
			case st.Status == model.StepCompleted:
				if lastCompleted == nil || st.SequenceOrder >= lastCompleted.SequenceOrder {
					lastCompleted = st
				}
			}
		}

		baseQty, seq := order.TotalQuantity, 1
		var prevName model.ProcessName
		if lastCompleted != nil {
			baseQty = lastCompleted.QuantityCompleted
			seq = lastCompleted.SequenceOrder + 1
			prevName = lastCompleted.ProcessName
		}
		if !model.CanFollow(prevName, def.Name) {
			return apperror.Conflict(apperror.CodeInvalidTransition,
				"%s cannot follow %s", def.Label, describeProcess(prevName))
		}

		now := time.Now().UTC()
		step := &model.ProcessStep{OrderID: order.ID}
		if lastCompleted == nil && placeholder != nil {
			step = placeholder
		}
		step.ProcessName = def.Name
		step.ProcessPhase = def.Phase
		step.Department = def.Department
		step.SequenceOrder = seq
		step.Status = model.StepPending
		step.QuantityReceived = baseQty
		step.AssignedBy = req.AssignedBy
		step.AssignedAt = &now
		step.Notes = req.Notes

		delivered := def.Name == model.ProcessDelivered
		if delivered {
			step.Status = model.StepCompleted
			step.QuantityCompleted = baseQty
			step.ArrivedAt = &now
			step.StartedAt = &now
			step.CompletedAt = &now
		}

		if step.ID == uuid.Nil {
			err = s.processRepo.CreateStep(txCtx, step)
		} else {
			err = s.processRepo.UpdateStep(txCtx, step)
		}
		if err != nil {
			return apperror.Internal("failed to save process step", err)
		}

		transfer, err := s.routeTransfer(txCtx, order, lastCompleted, step, req, now)
		if err != nil {
			return err
		}

		fromState := order.CurrentState
		order.CurrentProcess = def.Name
		order.CurrentPhase = def.Phase
		order.CurrentState = model.StateAtPPIC
		if delivered {
			order.CurrentState = model.StateDelivered
			order.TotalCompleted = baseQty
		}
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return apperror.Internal("failed to update order", err)
		}

		notes := fmt.Sprintf("assigned to %s", def.Label)
		if req.Notes != "" {
			notes += ": " + req.Notes
		}
		if err := s.transition(txCtx, order, step, fromState, order.CurrentState, req.AssignedBy, baseQty, notes, now); err != nil {
			return err
		}

		result = AssignResult{Order: order, Step: step, Transfer: transfer}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, ws.EventProcessAssigned, map[string]interface{}{
		"order_id":     result.Order.ID,
		"order_number": result.Order.OrderNumber,
		"process":      result.Step.ProcessName,
		"department":   result.Step.Department,
		"quantity":     result.Step.QuantityReceived,
	})
	return &result, nil
}

// routeTransfer points a pending transfer for the order at the new step,
// creating one when none is waiting for that process.
func (s *processService) routeTransfer(
	ctx context.Context,
	order *model.Order,
	from, to *model.ProcessStep,
	req AssignNextRequest,
	now time.Time,
) (*model.TransferLog, error) {
	items, err := s.transferItems(ctx, order.ID, from, to.QuantityReceived)
	if err != nil {
		return nil, err
	}

	transfer, err := s.transferRepo.FindPendingTo(ctx, order.ID, to.ProcessName)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal("failed to look up pending transfer", err)
	}
	isNew := transfer == nil
	if isNew {
		number, err := s.transferRepo.NextTransferNumber(ctx, now.Year())
		if err != nil {
			return nil, apperror.Internal("failed to generate transfer number", err)
		}
		transfer = &model.TransferLog{TransferNumber: number, OrderID: order.ID}
	}

	transfer.FromDepartment = model.DeptPPIC
	transfer.FromProcess = model.ProcessDraft
	transfer.FromProcessStepID = nil
	if from != nil {
		transfer.FromDepartment = from.Department
		transfer.FromProcess = from.ProcessName
		transfer.FromProcessStepID = &from.ID
	}
	transfer.ToProcessStepID = &to.ID
	transfer.ToDepartment = to.Department
	transfer.ToProcess = to.ProcessName
	transfer.QuantityTransferred = to.QuantityReceived
	transfer.Status = model.TransferPending
	transfer.HandedOverBy = req.AssignedBy
	transfer.TransferredAt = now
	transfer.Notes = req.Notes
	if to.ProcessName == model.ProcessDelivered {
		transfer.Status = model.TransferReceived
		transfer.ReceivedBy = req.AssignedBy
		transfer.ReceivedAt = &now
		transfer.QuantityCompleted = to.QuantityCompleted
	}

	if isNew {
		transfer.Items = items
		if err := s.transferRepo.Create(ctx, transfer); err != nil {
			return nil, apperror.Internal("failed to create transfer", err)
		}
		return transfer, nil
	}

	if err := s.transferRepo.Update(ctx, transfer); err != nil {
		return nil, apperror.Internal("failed to update transfer", err)
	}
	if err := s.transferRepo.ReplaceItems(ctx, transfer.ID, items); err != nil {
		return nil, apperror.Internal("failed to update transfer items", err)
	}
	transfer.Items = items
	return transfer, nil
}

// transferItems splits qty over the order's sizes. When the previous step
// reported its output per size and that output adds up to qty, those figures
// are used as they are. Otherwise qty is shared out in proportion to each
// size's quantity net of rejects.
func (s *processService) transferItems(ctx context.Context, orderID uuid.UUID, from *model.ProcessStep, qty int) ([]model.TransferItem, error) {
	sizes, err := s.orderRepo.ListSizeBreakdowns(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("failed to load sizes", err)
	}

	if from != nil {
		prev, err := s.transferRepo.FindLatestToStep(ctx, from.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Internal("failed to look up transfer", err)
		}
		if items, ok := reportedOutput(prev, sizes, qty); ok {
			return items, nil
		}
	}

	weights := make([]int, len(sizes))
	for i, sz := range sizes {
		if net := sz.Quantity - sz.Rejected; net > 0 {
			weights[i] = net
		}
	}
	shares := apportion(qty, weights)
	items := make([]model.TransferItem, 0, len(sizes))
	for i, sz := range sizes {
		items = append(items, model.TransferItem{Size: sz.Size, Quantity: shares[i], BundleCount: sz.BundleCount})
	}
	return items, nil
}

// reportedOutput returns the per-size completions recorded on prev when
// every size was reported and they sum to qty
func reportedOutput(prev *model.TransferLog, sizes []model.SizeBreakdown, qty int) ([]model.TransferItem, bool) {
	if prev == nil || len(prev.Items) == 0 {
		return nil, false
	}
	done := make(map[string]int, len(prev.Items))
	for _, it := range prev.Items {
		if it.Completed == nil {
			return nil, false
		}
		done[it.Size] = *it.Completed
	}
	items := make([]model.TransferItem, 0, len(sizes))
	sum := 0
	for _, sz := range sizes {
		n := done[sz.Size]
		sum += n
		items = append(items, model.TransferItem{Size: sz.Size, Quantity: n, BundleCount: sz.BundleCount})
	}
	if sum != qty {
		return nil, false
	}
	return items, true
}

// apportion splits total over weights by largest remainder; the shares
// always add up to total. Zero weights share equally when all are zero.
func apportion(total int, weights []int) []int {
	shares := make([]int, len(weights))
	if len(weights) == 0 || total <= 0 {
		return shares
	}
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		for i := range weights {
			weights[i] = 1
		}
		sum = len(weights)
	}

	type rem struct{ idx, r int }
	rems := make([]rem, len(weights))
	given := 0
	for i, w := range weights {
		shares[i] = total * w / sum
		given += shares[i]
		rems[i] = rem{i, total * w % sum}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for i := 0; given < total; i++ {
		shares[rems[i%len(rems)].idx]++
		given++
	}
	return shares
}

func (s *processService) transition(
	ctx context.Context,
	order *model.Order,
	step *model.ProcessStep,
	from, to, performedBy string,
	quantity int,
	notes string,
	at time.Time,
) error {
	t := &model.ProcessTransition{
		OrderID:        order.ID,
		FromState:      from,
		ToState:        to,
		TransitionTime: at,
		PerformedBy:    performedBy,
		ProcessName:    order.CurrentProcess,
		Quantity:       quantity,
		Notes:          notes,
	}
	if step != nil {
		t.ProcessStepID = &step.ID
		t.ProcessName = step.ProcessName
		t.Department = step.Department
	}
	if err := s.processRepo.CreateTransition(ctx, t); err != nil {
		return apperror.Internal("failed to write transition", err)
	}
	return nil
}

// lockStep loads a step and locks the order that owns it. Every mutation of
// a step goes through the order lock.
func (s *processService) lockStep(ctx context.Context, stepID uuid.UUID) (*model.Order, *model.ProcessStep, error) {
	step, err := s.processRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return nil, nil, lookupErr(err, apperror.CodeProcessStepNotFound, "process step")
	}
	order, err := s.orderRepo.FindByIDForUpdate(ctx, step.OrderID)
	if err != nil {
		return nil, nil, lookupErr(err, apperror.CodeOrderNotFound, "order")
	}
	// re-read under the lock
	step, err = s.processRepo.FindStepByIDForUpdate(ctx, stepID)
	if err != nil {
		return nil, nil, lookupErr(err, apperror.CodeProcessStepNotFound, "process step")
	}
	if step.ProcessName == model.ProcessDraft {
		return nil, nil, apperror.Conflict(apperror.CodeInvalidStepState, "order %s has no process assigned yet", order.OrderNumber)
	}
	return order, step, nil
}

func (s *processService) StartStep(ctx context.Context, stepID string, req StartStepRequest) (*model.ProcessStep, error) {
	id, err := parseID(stepID, "process step")
	if err != nil {
		return nil, err
	}

	var step *model.ProcessStep
	var order *model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, step, err = s.lockStep(txCtx, id)
		if err != nil {
			return err
		}
		return s.start(txCtx, order, step, nil, req)
	})
	if err != nil {
		return nil, err
	}

	s.publishStarted(order, step)
	return step, nil
}

func (s *processService) ReceiveTransfer(ctx context.Context, transferID string, req StartStepRequest) (*model.TransferLog, error) {
	id, err := parseID(transferID, "transfer")
	if err != nil {
		return nil, err
	}

	var step *model.ProcessStep
	var order *model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		transfer, err := s.transferRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeTransferNotFound, "transfer")
		}
		if transfer.Status != model.TransferPending {
			return apperror.Conflict(apperror.CodeInvalidStepState, "transfer %s was already received", transfer.TransferNumber)
		}
		if transfer.ToProcessStepID == nil {
			return apperror.Conflict(apperror.CodeInvalidStepState, "transfer %s has no destination step", transfer.TransferNumber)
		}

		order, step, err = s.lockStep(txCtx, *transfer.ToProcessStepID)
		if err != nil {
			return err
		}
		return s.start(txCtx, order, step, transfer, req)
	})
	if err != nil {
		return nil, err
	}

	s.publishStarted(order, step)
	return s.transferRepo.FindByID(ctx, id)
}

// start moves a pending step to in_progress and marks its inbound transfer received
func (s *processService) start(ctx context.Context, order *model.Order, step *model.ProcessStep, transfer *model.TransferLog, req StartStepRequest) error {
	if strings.TrimSpace(req.ReceivedBy) == "" {
		return apperror.Validation(apperror.CodeMissingField, "received_by is required")
	}
	if order.CurrentState == model.StateOnHold {
		return apperror.Conflict(apperror.CodeOrderOnHold, "order %s is on hold", order.OrderNumber)
	}
	if step.Status != model.StepPending {
		return apperror.Conflict(apperror.CodeInvalidStepState, "%s is %s, expected %s",
			describeProcess(step.ProcessName), step.Status, model.StepPending)
	}
	if req.QuantityReceived != nil && *req.QuantityReceived < 0 {
		return apperror.Validation(apperror.CodeInvalidInput, "quantity_received cannot be negative")
	}

	now := time.Now().UTC()
	step.Status = model.StepInProgress
	step.ArrivedAt = &now
	step.StartedAt = &now
	if req.QuantityReceived != nil {
		step.QuantityReceived = *req.QuantityReceived
	}
	if err := s.processRepo.UpdateStep(ctx, step); err != nil {
		return apperror.Internal("failed to update process step", err)
	}

	if transfer == nil {
		found, err := s.transferRepo.FindLatestToStep(ctx, step.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Internal("failed to look up transfer", err)
		}
		transfer = found
	}
	if transfer != nil && transfer.Status == model.TransferPending {
		transfer.Status = model.TransferReceived
		transfer.ReceivedBy = req.ReceivedBy
		transfer.ReceivedAt = &now
		if err := s.transferRepo.Update(ctx, transfer); err != nil {
			return apperror.Internal("failed to update transfer", err)
		}
	}

	fromState := order.CurrentState
	order.CurrentState = model.StateInProgress
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return apperror.Internal("failed to update order", err)
	}

	notes := fmt.Sprintf("%s received goods", step.Department)
	if req.Notes != "" {
		notes += ": " + req.Notes
	}
	return s.transition(ctx, order, step, fromState, order.CurrentState, req.ReceivedBy, step.QuantityReceived, notes, now)
}

func (s *processService) publishStarted(order *model.Order, step *model.ProcessStep) {
	publish(s.events, ws.EventProcessStarted, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"process":      step.ProcessName,
		"department":   step.Department,
		"quantity":     step.QuantityReceived,
	})
}

// CompleteStep closes an in-progress step and hands the order back to PPIC.
// A completed quantity above the received quantity is accepted and logged.
func (s *processService) CompleteStep(ctx context.Context, stepID string, req CompleteStepRequest) (*model.ProcessStep, error) {
	id, err := parseID(stepID, "process step")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CompletedBy) == "" {
		return nil, apperror.Validation(apperror.CodeMissingField, "completed_by is required")
	}
	if req.QuantityCompleted < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "quantity_completed cannot be negative")
	}

	completed := req.QuantityCompleted
	if len(req.Sizes) > 0 {
		sum := 0
		for _, sz := range req.Sizes {
			if sz.Completed < 0 {
				return nil, apperror.Validation(apperror.CodeInvalidInput, "completed quantity for size %s cannot be negative", sz.Size)
			}
			sum += sz.Completed
		}
		if completed == 0 {
			completed = sum
		} else if completed != sum {
			return nil, apperror.Validation(apperror.CodeInvalidInput,
				"quantity_completed %d does not match the size total %d", completed, sum)
		}
	}

	var step *model.ProcessStep
	var order *model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, step, err = s.lockStep(txCtx, id)
		if err != nil {
			return err
		}
		if order.CurrentState == model.StateOnHold {
			return apperror.Conflict(apperror.CodeOrderOnHold, "order %s is on hold", order.OrderNumber)
		}
		if step.Status != model.StepInProgress {
			return apperror.Conflict(apperror.CodeInvalidStepState, "%s is %s, expected %s",
				describeProcess(step.ProcessName), step.Status, model.StepInProgress)
		}
		sizes, err := s.checkSizeCompletions(txCtx, order.ID, req.Sizes)
		if err != nil {
			return err
		}

		if completed > step.QuantityReceived {
			logger.Get().WithFields(logrus.Fields{
				"order_number": order.OrderNumber,
				"process":      step.ProcessName,
				"received":     step.QuantityReceived,
				"completed":    completed,
			}).Warn("completed quantity exceeds received quantity")
		}

		now := time.Now().UTC()
		step.Status = model.StepCompleted
		step.QuantityCompleted = completed
		step.CompletedAt = &now
		if req.Notes != "" {
			step.Notes = req.Notes
		}
		if err := s.processRepo.UpdateStep(txCtx, step); err != nil {
			return apperror.Internal("failed to update process step", err)
		}

		if model.IsEndOfProduction(step.ProcessName) {
			order.TotalCompleted = completed
		}

		transfer, err := s.transferRepo.FindLatestToStep(txCtx, step.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Internal("failed to look up transfer", err)
		}
		if transfer != nil {
			transfer.QuantityCompleted = completed
			transfer.QuantityRejected = step.QuantityRejected
			transfer.QuantityRework = step.QuantityRework
			if err := s.transferRepo.Update(txCtx, transfer); err != nil {
				return apperror.Internal("failed to update transfer", err)
			}
		}

		if len(sizes) > 0 {
			if err := s.recordSizeCompletions(txCtx, transfer, sizes); err != nil {
				return err
			}
			if model.IsEndOfProduction(step.ProcessName) {
				if err := s.applySizeCompletions(txCtx, order.ID, sizes); err != nil {
					return err
				}
			}
		}

		fromState := order.CurrentState
		order.CurrentState = model.StateAtPPIC
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return apperror.Internal("failed to update order", err)
		}

		notes := fmt.Sprintf("%s completed", describeProcess(step.ProcessName))
		if req.Notes != "" {
			notes += ": " + req.Notes
		}
		return s.transition(txCtx, order, step, fromState, order.CurrentState, req.CompletedBy, completed, notes, now)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, ws.EventProcessCompleted, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"process":      step.ProcessName,
		"completed":    step.QuantityCompleted,
	})
	return step, nil
}

// checkSizeCompletions matches completions to the order's sizes. Unknown and
// repeated sizes are rejected.
func (s *processService) checkSizeCompletions(ctx context.Context, orderID uuid.UUID, completions []SizeCompletion) (map[string]int, error) {
	if len(completions) == 0 {
		return nil, nil
	}
	sizes, err := s.orderRepo.ListSizeBreakdowns(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("failed to load sizes", err)
	}
	known := make(map[string]bool, len(sizes))
	for _, sz := range sizes {
		known[sz.Size] = true
	}

	out := make(map[string]int, len(completions))
	for _, c := range completions {
		size := strings.ToUpper(strings.TrimSpace(c.Size))
		if !known[size] {
			return nil, apperror.Validation(apperror.CodeInvalidInput, "order has no size %s", c.Size)
		}
		if _, dup := out[size]; dup {
			return nil, apperror.Validation(apperror.CodeInvalidInput, "size %s reported twice", size)
		}
		out[size] = c.Completed
	}
	return out, nil
}

// recordSizeCompletions stores the step's per-size output on the transfer that fed it
func (s *processService) recordSizeCompletions(ctx context.Context, transfer *model.TransferLog, completed map[string]int) error {
	if transfer == nil {
		return nil
	}
	items := make([]model.TransferItem, 0, len(transfer.Items)+len(completed))
	seen := make(map[string]bool, len(transfer.Items))
	for _, it := range transfer.Items {
		item := model.TransferItem{Size: it.Size, Quantity: it.Quantity, BundleCount: it.BundleCount}
		if n, ok := completed[it.Size]; ok {
			n := n
			item.Completed = &n
		}
		seen[it.Size] = true
		items = append(items, item)
	}
	for size, n := range completed {
		if !seen[size] {
			n := n
			items = append(items, model.TransferItem{Size: size, Completed: &n})
		}
	}
	if err := s.transferRepo.ReplaceItems(ctx, transfer.ID, items); err != nil {
		return apperror.Internal("failed to record size completions", err)
	}
	transfer.Items = items
	return nil
}

// applySizeCompletions books finished pieces per size on the order
func (s *processService) applySizeCompletions(ctx context.Context, orderID uuid.UUID, completed map[string]int) error {
	sizes, err := s.orderRepo.ListSizeBreakdowns(ctx, orderID)
	if err != nil {
		return apperror.Internal("failed to load sizes", err)
	}
	for i := range sizes {
		n, ok := completed[sizes[i].Size]
		if !ok {
			continue
		}
		sizes[i].Completed = n
		if err := s.orderRepo.UpdateSizeBreakdown(ctx, &sizes[i]); err != nil {
			return apperror.Internal("failed to update size breakdown", err)
		}
	}
	return nil
}

// missingRejectField names the first required reject field left empty
func missingRejectField(req RecordRejectRequest) string {
	switch {
	case strings.TrimSpace(req.RejectType) == "":
		return "reject_type"
	case strings.TrimSpace(req.RejectCategory) == "":
		return "reject_category"
	case req.Quantity == 0:
		return "quantity"
	case strings.TrimSpace(req.Description) == "":
		return "description"
	case strings.TrimSpace(req.Action) == "":
		return "action"
	case strings.TrimSpace(req.ReportedBy) == "":
		return "reported_by"
	}
	return ""
}

// RecordReject books a quality exception against a step. Rework counts
// towards both the reject and the rework counters.
func (s *processService) RecordReject(ctx context.Context, stepID string, req RecordRejectRequest) (*model.RejectLog, error) {
	if field := missingRejectField(req); field != "" {
		return nil, apperror.Validation(apperror.CodeMissingField, "%s is required", field)
	}
	if req.RejectCategory != model.RejectCategoryReject && req.RejectCategory != model.RejectCategoryRework {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "reject_category must be %s or %s",
			model.RejectCategoryReject, model.RejectCategoryRework)
	}
	if req.Quantity < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "quantity must be greater than zero")
	}
	id, err := parseID(stepID, "process step")
	if err != nil {
		return nil, err
	}

	rework := req.RejectCategory == model.RejectCategoryRework
	size := strings.ToUpper(strings.TrimSpace(req.Size))

	var reject *model.RejectLog
	var order *model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var step *model.ProcessStep
		order, step, err = s.lockStep(txCtx, id)
		if err != nil {
			return err
		}

		if size != "" {
			sizes, err := s.orderRepo.ListSizeBreakdowns(txCtx, order.ID)
			if err != nil {
				return apperror.Internal("failed to load sizes", err)
			}
			var sb *model.SizeBreakdown
			for i := range sizes {
				if sizes[i].Size == size {
					sb = &sizes[i]
					break
				}
			}
			if sb == nil {
				return apperror.Validation(apperror.CodeInvalidInput, "order has no size %s", req.Size)
			}
			if !rework {
				sb.Rejected += req.Quantity
				if err := s.orderRepo.UpdateSizeBreakdown(txCtx, sb); err != nil {
					return apperror.Internal("failed to update size breakdown", err)
				}
			}
		}

		reject = &model.RejectLog{
			OrderID:        order.ID,
			ProcessStepID:  step.ID,
			RejectType:     req.RejectType,
			RejectCategory: req.RejectCategory,
			Quantity:       req.Quantity,
			Size:           size,
			Description:    req.Description,
			RootCause:      req.RootCause,
			Action:         req.Action,
			ReportedBy:     req.ReportedBy,
		}
		if err := s.rejectRepo.Create(txCtx, reject); err != nil {
			return apperror.Internal("failed to record reject", err)
		}

		step.QuantityRejected += req.Quantity
		order.TotalRejected += req.Quantity
		if rework {
			step.QuantityRework += req.Quantity
			order.TotalRework += req.Quantity
		}
		if err := s.processRepo.UpdateStep(txCtx, step); err != nil {
			return apperror.Internal("failed to update process step", err)
		}
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return apperror.Internal("failed to update order", err)
		}

		notes := fmt.Sprintf("%s: %d x %s at %s", req.RejectCategory, req.Quantity, req.RejectType, describeProcess(step.ProcessName))
		return s.transition(txCtx, order, step, model.StateInProgress, model.StateInProgress, req.ReportedBy, req.Quantity, notes, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, ws.EventRejectRecorded, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"category":     reject.RejectCategory,
		"quantity":     reject.Quantity,
	})
	return reject, nil
}

// CompleteRework marks rework as done. Counters keep the history and are not reduced.
func (s *processService) CompleteRework(ctx context.Context, rejectID string, req CompleteReworkRequest) (*model.RejectLog, error) {
	if strings.TrimSpace(req.PerformedBy) == "" {
		return nil, apperror.Validation(apperror.CodeMissingField, "performed_by is required")
	}
	id, err := parseID(rejectID, "reject")
	if err != nil {
		return nil, err
	}

	var reject *model.RejectLog
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		reject, err = s.rejectRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "reject")
		}
		order, step, err := s.lockStep(txCtx, reject.ProcessStepID)
		if err != nil {
			return err
		}
		if reject.RejectCategory != model.RejectCategoryRework {
			return apperror.Conflict(apperror.CodeInvalidInput, "only rework can be completed")
		}
		if reject.ReworkCompleted {
			return apperror.Conflict(apperror.CodeInvalidInput, "rework was already completed")
		}

		now := time.Now().UTC()
		reject.ReworkCompleted = true
		reject.ReworkCompletedAt = &now
		if err := s.rejectRepo.Update(txCtx, reject); err != nil {
			return apperror.Internal("failed to update reject", err)
		}

		notes := fmt.Sprintf("rework of %d x %s completed", reject.Quantity, reject.RejectType)
		if req.Notes != "" {
			notes += ": " + req.Notes
		}
		return s.transition(txCtx, order, step, model.StateInProgress, model.StateInProgress, req.PerformedBy, reject.Quantity, notes, now)
	})
	if err != nil {
		return nil, err
	}
	return reject, nil
}

func (s *processService) HoldOrder(ctx context.Context, orderID string, req HoldRequest) (*model.Order, error) {
	return s.setHold(ctx, orderID, req, true)
}

func (s *processService) ResumeOrder(ctx context.Context, orderID string, req HoldRequest) (*model.Order, error) {
	return s.setHold(ctx, orderID, req, false)
}

func (s *processService) setHold(ctx context.Context, orderID string, req HoldRequest, hold bool) (*model.Order, error) {
	if strings.TrimSpace(req.PerformedBy) == "" {
		return nil, apperror.Validation(apperror.CodeMissingField, "performed_by is required")
	}
	id, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}

	var order *model.Order
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, apperror.CodeOrderNotFound, "order")
		}
		if order.IsDelivered() {
			return apperror.Conflict(apperror.CodeOrderDelivered, "order %s is already delivered", order.OrderNumber)
		}

		fromState := order.CurrentState
		notes := "resumed"
		if hold {
			if order.CurrentState == model.StateOnHold {
				return apperror.Conflict(apperror.CodeOrderOnHold, "order %s is already on hold", order.OrderNumber)
			}
			order.StateBeforeHold = order.CurrentState
			order.CurrentState = model.StateOnHold
			notes = "put on hold"
		} else {
			if order.CurrentState != model.StateOnHold {
				return apperror.Conflict(apperror.CodeInvalidTransition, "order %s is not on hold", order.OrderNumber)
			}
			order.CurrentState = order.StateBeforeHold
			if order.CurrentState == "" {
				order.CurrentState = model.StateAtPPIC
			}
			order.StateBeforeHold = ""
		}
		if req.Reason != "" {
			notes += ": " + req.Reason
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return apperror.Internal("failed to update order", err)
		}
		return s.transition(txCtx, order, nil, fromState, order.CurrentState, req.PerformedBy, 0, notes, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	event := ws.EventOrderResumed
	if hold {
		event = ws.EventOrderHeld
	}
	publish(s.events, event, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"state":        order.CurrentState,
	})
	return order, nil
}

func (s *processService) GetStep(ctx context.Context, stepID string) (*StepDetail, error) {
	id, err := parseID(stepID, "process step")
	if err != nil {
		return nil, err
	}
	step, err := s.processRepo.FindStepByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeProcessStepNotFound, "process step")
	}
	rejects, err := s.rejectRepo.ListByStep(ctx, id)
	if err != nil {
		return nil, apperror.Internal("failed to load rejects", err)
	}
	return &StepDetail{Step: step, Rejects: rejects}, nil
}

func (s *processService) ListSteps(ctx context.Context, filter repository.StepFilter, page, limit int) ([]model.ProcessStep, int64, error) {
	page, limit = normalizePage(page, limit)
	steps, total, err := s.processRepo.ListSteps(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list process steps", err)
	}
	return steps, total, nil
}

func (s *processService) GetTransfer(ctx context.Context, transferID string) (*model.TransferLog, error) {
	id, err := parseID(transferID, "transfer")
	if err != nil {
		return nil, err
	}
	transfer, err := s.transferRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeTransferNotFound, "transfer")
	}
	return transfer, nil
}

func (s *processService) ListTransfers(ctx context.Context, filter repository.TransferFilter, page, limit int) ([]model.TransferLog, int64, error) {
	page, limit = normalizePage(page, limit)
	transfers, total, err := s.transferRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list transfers", err)
	}
	return transfers, total, nil
}
