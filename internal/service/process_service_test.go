package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	ws "garmentflow/internal/websocket"
	"garmentflow/pkg/apperror"
)

func TestOrderScenarioCuttingRejectAndEarlyAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t)
	year := time.Now().UTC().Year()
	if want := fmt.Sprintf("ORD-%d-00001", year); order.OrderNumber != want {
		t.Fatalf("order number = %q, want %q", order.OrderNumber, want)
	}
	sum := 0
	for _, sz := range order.SizeBreakdowns {
		sum += sz.Quantity
	}
	if sum != order.TotalQuantity || sum != 500 {
		t.Fatalf("size total %d, order total %d", sum, order.TotalQuantity)
	}
	if order.CurrentProcess != model.ProcessDraft || order.CurrentState != model.StateAtPPIC {
		t.Fatalf("new order at %s/%s", order.CurrentProcess, order.CurrentState)
	}

	res := env.assign(t, order.ID.String(), model.ProcessCutting)
	if res.Step.SequenceOrder != 1 || res.Step.QuantityReceived != 500 {
		t.Fatalf("cutting step seq=%d received=%d", res.Step.SequenceOrder, res.Step.QuantityReceived)
	}
	if res.Step.Department != model.DeptCutting || res.Step.Status != model.StepPending {
		t.Fatalf("cutting step %s/%s", res.Step.Department, res.Step.Status)
	}
	if want := fmt.Sprintf("TRF-%d-00001", year); res.Transfer.TransferNumber != want {
		t.Fatalf("transfer number = %q, want %q", res.Transfer.TransferNumber, want)
	}
	if len(res.Transfer.Items) != 4 {
		t.Fatalf("transfer carries %d sizes, want 4", len(res.Transfer.Items))
	}
	// the placeholder is promoted, not duplicated
	if n := env.count(t, &model.ProcessStep{}); n != 1 {
		t.Fatalf("process steps = %d, want 1", n)
	}

	_, err := env.process.RecordReject(ctx, res.Step.ID.String(), RecordRejectRequest{
		RejectType:     "fabric_defect",
		RejectCategory: model.RejectCategoryReject,
		Quantity:       10,
		Description:    "shade variation on two plies",
		Action:         "recut",
		ReportedBy:     "qc.bao",
	})
	if err != nil {
		t.Fatalf("record reject: %v", err)
	}

	got, err := env.orders.GetOrder(ctx, order.ID.String())
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.TotalRejected != 10 || got.TotalRework != 0 {
		t.Fatalf("order rejected=%d rework=%d", got.TotalRejected, got.TotalRework)
	}
	detail, err := env.process.GetStep(ctx, res.Step.ID.String())
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if detail.Step.QuantityRejected != 10 || len(detail.Rejects) != 1 {
		t.Fatalf("step rejected=%d rejects=%d", detail.Step.QuantityRejected, len(detail.Rejects))
	}

	_, err = env.process.AssignNext(ctx, AssignNextRequest{
		OrderID:         order.ID.String(),
		NextProcessName: string(model.ProcessSewing),
		AssignedBy:      "ppic.anna",
	})
	expectCode(t, err, apperror.CodeCurrentProcessIncomplete)
}

func TestAssignNextRejectsSameProcessTwice(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.assign(t, order.ID.String(), model.ProcessCutting)

	_, err := env.process.AssignNext(context.Background(), AssignNextRequest{
		OrderID:         order.ID.String(),
		NextProcessName: string(model.ProcessCutting),
		AssignedBy:      "ppic.anna",
	})
	expectCode(t, err, apperror.CodeProcessAlreadyActive)
}

// The SQLite harness runs on a single connection, so callers queue at the
// pool and this checks the state machine only. The row lock on the order is
// exercised by the postgres-tagged variant.
func TestConcurrentAssignNextOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	expectSingleAssignment(t, env, 4)
}

func expectSingleAssignment(t *testing.T, env *testEnv, callers int) {
	t.Helper()
	order := env.createOrder(t)

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.process.AssignNext(context.Background(), AssignNextRequest{
				OrderID:         order.ID.String(),
				NextProcessName: string(model.ProcessCutting),
				AssignedBy:      fmt.Sprintf("ppic.%d", i),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperror.HasCode(err, apperror.CodeProcessAlreadyActive):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d assignments succeeded, want exactly 1", wins)
	}
	if n := env.count(t, &model.ProcessStep{}); n != 1 {
		t.Fatalf("process steps = %d, want 1", n)
	}
	if n := env.count(t, &model.TransferLog{}); n != 1 {
		t.Fatalf("transfers = %d, want 1", n)
	}
}

func TestAssignNextFollowsTransitionTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	id := order.ID.String()

	// nothing but cutting may come first
	_, err := env.process.AssignNext(ctx, AssignNextRequest{OrderID: id, NextProcessName: string(model.ProcessSewing), AssignedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeInvalidTransition)

	cutting := env.assign(t, id, model.ProcessCutting)
	env.runStep(t, cutting.Step.ID.String(), 490)

	_, err = env.process.AssignNext(ctx, AssignNextRequest{OrderID: id, NextProcessName: string(model.ProcessWashing), AssignedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeInvalidTransition)

	_, err = env.process.AssignNext(ctx, AssignNextRequest{OrderID: id, NextProcessName: "dyeing", AssignedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeInvalidInput)

	sewing := env.assign(t, id, model.ProcessSewing)
	if sewing.Step.SequenceOrder != 2 || sewing.Step.QuantityReceived != 490 {
		t.Fatalf("sewing seq=%d received=%d, want 2/490", sewing.Step.SequenceOrder, sewing.Step.QuantityReceived)
	}
	if sewing.Transfer.FromProcess != model.ProcessCutting || sewing.Transfer.ToDepartment != model.DeptSewing {
		t.Fatalf("transfer %s -> %s", sewing.Transfer.FromProcess, sewing.Transfer.ToDepartment)
	}
}

func TestRejectAndReworkCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	step := env.assign(t, order.ID.String(), model.ProcessCutting).Step
	if _, err := env.process.StartStep(ctx, step.ID.String(), StartStepRequest{ReceivedBy: "cutter.lan"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	rework, err := env.process.RecordReject(ctx, step.ID.String(), RecordRejectRequest{
		RejectType:     "notch_missing",
		RejectCategory: model.RejectCategoryRework,
		Quantity:       5,
		Size:           "m",
		Description:    "notches not cut",
		Action:         "re-notch",
		ReportedBy:     "qc.bao",
	})
	if err != nil {
		t.Fatalf("record rework: %v", err)
	}

	check := func(stepRej, stepRew, orderRej, orderRew int) {
		t.Helper()
		d, err := env.process.GetStep(ctx, step.ID.String())
		if err != nil {
			t.Fatalf("get step: %v", err)
		}
		o, err := env.orders.GetOrder(ctx, order.ID.String())
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if d.Step.QuantityRejected != stepRej || d.Step.QuantityRework != stepRew {
			t.Fatalf("step rejected=%d rework=%d, want %d/%d", d.Step.QuantityRejected, d.Step.QuantityRework, stepRej, stepRew)
		}
		if o.TotalRejected != orderRej || o.TotalRework != orderRew {
			t.Fatalf("order rejected=%d rework=%d, want %d/%d", o.TotalRejected, o.TotalRework, orderRej, orderRew)
		}
	}
	check(5, 5, 5, 5)

	if _, err := env.process.RecordReject(ctx, step.ID.String(), RecordRejectRequest{
		RejectType:     "hole",
		RejectCategory: model.RejectCategoryReject,
		Quantity:       3,
		Size:           "L",
		Description:    "hole in fabric",
		Action:         "scrap",
		ReportedBy:     "qc.bao",
	}); err != nil {
		t.Fatalf("record reject: %v", err)
	}
	check(8, 5, 8, 5)

	o, _ := env.orders.GetOrder(ctx, order.ID.String())
	for _, sz := range o.SizeBreakdowns {
		want := 0
		if sz.Size == "L" {
			want = 3
		}
		if sz.Rejected != want {
			t.Fatalf("size %s rejected=%d, want %d", sz.Size, sz.Rejected, want)
		}
	}

	done, err := env.process.CompleteRework(ctx, rework.ID.String(), CompleteReworkRequest{PerformedBy: "cutter.lan"})
	if err != nil {
		t.Fatalf("complete rework: %v", err)
	}
	if !done.ReworkCompleted || done.ReworkCompletedAt == nil {
		t.Fatal("rework not marked completed")
	}
	// history is kept
	check(8, 5, 8, 5)

	_, err = env.process.CompleteRework(ctx, rework.ID.String(), CompleteReworkRequest{PerformedBy: "cutter.lan"})
	expectCode(t, err, apperror.CodeInvalidInput)
}

func TestRecordRejectRequiresFields(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	step := env.assign(t, order.ID.String(), model.ProcessCutting).Step

	base := RecordRejectRequest{
		RejectType:     "stain",
		RejectCategory: model.RejectCategoryReject,
		Quantity:       2,
		Description:    "oil stain",
		Action:         "scrap",
		ReportedBy:     "qc.bao",
	}
	cases := map[string]func(r *RecordRejectRequest){
		"reject_type":     func(r *RecordRejectRequest) { r.RejectType = "" },
		"reject_category": func(r *RecordRejectRequest) { r.RejectCategory = " " },
		"quantity":        func(r *RecordRejectRequest) { r.Quantity = 0 },
		"description":     func(r *RecordRejectRequest) { r.Description = "" },
		"action":          func(r *RecordRejectRequest) { r.Action = "" },
		"reported_by":     func(r *RecordRejectRequest) { r.ReportedBy = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := env.process.RecordReject(context.Background(), step.ID.String(), req)
			expectCode(t, err, apperror.CodeMissingField)
			if !strings.Contains(err.Error(), field) {
				t.Fatalf("error %q does not name %s", err, field)
			}
		})
	}

	if n := env.count(t, &model.RejectLog{}); n != 0 {
		t.Fatalf("reject rows = %d, want 0", n)
	}
}

func TestStartAndCompleteStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	res := env.assign(t, order.ID.String(), model.ProcessCutting)
	stepID := res.Step.ID.String()

	_, err := env.process.CompleteStep(ctx, stepID, CompleteStepRequest{QuantityCompleted: 10, CompletedBy: "cutter.lan"})
	expectCode(t, err, apperror.CodeInvalidStepState)

	transfer, err := env.process.ReceiveTransfer(ctx, res.Transfer.ID.String(), StartStepRequest{ReceivedBy: "cutter.lan"})
	if err != nil {
		t.Fatalf("receive transfer: %v", err)
	}
	if transfer.Status != model.TransferReceived || transfer.ReceivedBy != "cutter.lan" || transfer.ReceivedAt == nil {
		t.Fatalf("transfer not received: %+v", transfer)
	}

	_, err = env.process.StartStep(ctx, stepID, StartStepRequest{ReceivedBy: "cutter.lan"})
	expectCode(t, err, apperror.CodeInvalidStepState)

	o, _ := env.orders.GetOrder(ctx, order.ID.String())
	if o.CurrentState != model.StateInProgress {
		t.Fatalf("order state %s, want %s", o.CurrentState, model.StateInProgress)
	}

	_, err = env.process.CompleteStep(ctx, stepID, CompleteStepRequest{
		QuantityCompleted: 100,
		Sizes:             []SizeCompletion{{Size: "S", Completed: 50}},
		CompletedBy:       "cutter.lan",
	})
	expectCode(t, err, apperror.CodeInvalidInput)

	step, err := env.process.CompleteStep(ctx, stepID, CompleteStepRequest{QuantityCompleted: 495, CompletedBy: "cutter.lan"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if step.Status != model.StepCompleted || step.QuantityCompleted != 495 || step.CompletedAt == nil {
		t.Fatalf("step after complete: %+v", step)
	}

	o, _ = env.orders.GetOrder(ctx, order.ID.String())
	if o.CurrentState != model.StateAtPPIC {
		t.Fatalf("order state %s, want %s", o.CurrentState, model.StateAtPPIC)
	}

	timeline, err := env.orders.Timeline(ctx, order.ID.String())
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	// created, assigned, received, completed
	if len(timeline) != 4 {
		t.Fatalf("timeline has %d rows, want 4", len(timeline))
	}

	want := []string{ws.EventProcessAssigned, ws.EventProcessStarted, ws.EventProcessCompleted}
	got := env.events.names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events %v, want %v", got, want)
	}
}

func TestHoldBlocksProgressUntilResumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	id := order.ID.String()
	step := env.assign(t, id, model.ProcessCutting).Step
	if _, err := env.process.StartStep(ctx, step.ID.String(), StartStepRequest{ReceivedBy: "cutter.lan"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	held, err := env.process.HoldOrder(ctx, id, HoldRequest{PerformedBy: "ppic.anna", Reason: "fabric recall"})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.CurrentState != model.StateOnHold {
		t.Fatalf("state %s after hold", held.CurrentState)
	}

	_, err = env.process.HoldOrder(ctx, id, HoldRequest{PerformedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeOrderOnHold)

	_, err = env.process.CompleteStep(ctx, step.ID.String(), CompleteStepRequest{QuantityCompleted: 500, CompletedBy: "cutter.lan"})
	expectCode(t, err, apperror.CodeOrderOnHold)

	resumed, err := env.process.ResumeOrder(ctx, id, HoldRequest{PerformedBy: "ppic.anna"})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.CurrentState != model.StateInProgress {
		t.Fatalf("state %s after resume, want %s", resumed.CurrentState, model.StateInProgress)
	}

	_, err = env.process.ResumeOrder(ctx, id, HoldRequest{PerformedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeInvalidTransition)

	if _, err := env.process.CompleteStep(ctx, step.ID.String(), CompleteStepRequest{QuantityCompleted: 500, CompletedBy: "cutter.lan"}); err != nil {
		t.Fatalf("complete after resume: %v", err)
	}
}

func TestOrderRunsToDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	id := order.ID.String()

	flow := []struct {
		process   model.ProcessName
		completed int
	}{
		{model.ProcessCutting, 500},
		{model.ProcessSewing, 498},
		{model.ProcessQCSewing, 495},
		{model.ProcessIroning, 495},
		{model.ProcessFinalQC, 494},
		{model.ProcessPacking, 494},
		{model.ProcessWarehouse, 494},
		{model.ProcessShipping, 494},
	}
	for i, f := range flow {
		res := env.assign(t, id, f.process)
		if res.Step.SequenceOrder != i+1 {
			t.Fatalf("%s has sequence %d, want %d", f.process, res.Step.SequenceOrder, i+1)
		}
		env.runStep(t, res.Step.ID.String(), f.completed)
	}

	o, _ := env.orders.GetOrder(ctx, id)
	if o.TotalCompleted != 494 {
		t.Fatalf("total completed after packing = %d, want 494", o.TotalCompleted)
	}
	if o.CurrentPhase != model.PhaseDelivery {
		t.Fatalf("phase %s, want %s", o.CurrentPhase, model.PhaseDelivery)
	}

	delivered := env.assign(t, id, model.ProcessDelivered)
	if delivered.Step.Status != model.StepCompleted || delivered.Order.CurrentState != model.StateDelivered {
		t.Fatalf("delivered step %s, order %s", delivered.Step.Status, delivered.Order.CurrentState)
	}
	if !delivered.Order.IsDelivered() {
		t.Fatal("order not terminal after delivery")
	}

	_, err := env.process.AssignNext(ctx, AssignNextRequest{OrderID: id, NextProcessName: string(model.ProcessShipping), AssignedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeOrderDelivered)
	_, err = env.process.HoldOrder(ctx, id, HoldRequest{PerformedBy: "ppic.anna"})
	expectCode(t, err, apperror.CodeOrderDelivered)
}

func TestQCSendsBackToSewing(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	id := order.ID.String()

	env.runStep(t, env.assign(t, id, model.ProcessCutting).Step.ID.String(), 500)
	env.runStep(t, env.assign(t, id, model.ProcessSewing).Step.ID.String(), 500)
	env.runStep(t, env.assign(t, id, model.ProcessQCSewing).Step.ID.String(), 40)

	again := env.assign(t, id, model.ProcessSewing)
	if again.Step.SequenceOrder != 4 || again.Step.QuantityReceived != 40 {
		t.Fatalf("second sewing seq=%d received=%d", again.Step.SequenceOrder, again.Step.QuantityReceived)
	}

	steps, _, err := env.process.ListSteps(context.Background(), repository.StepFilter{OrderID: id, ProcessName: string(model.ProcessSewing)}, 1, 10)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("sewing occurrences = %d, want 2", len(steps))
	}
}

func itemTotal(items []model.TransferItem) (map[string]int, int) {
	bySize := make(map[string]int, len(items))
	sum := 0
	for _, it := range items {
		bySize[it.Size] = it.Quantity
		sum += it.Quantity
	}
	return bySize, sum
}

func TestTransferItemsAddUpToTransferredQuantity(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	id := order.ID.String()

	cutting := env.assign(t, id, model.ProcessCutting)
	env.runStep(t, cutting.Step.ID.String(), 487)

	sewing := env.assign(t, id, model.ProcessSewing)
	if sewing.Transfer.QuantityTransferred != 487 {
		t.Fatalf("quantity transferred %d, want 487", sewing.Transfer.QuantityTransferred)
	}
	bySize, sum := itemTotal(sewing.Transfer.Items)
	if sum != sewing.Transfer.QuantityTransferred {
		t.Fatalf("items add up to %d, transfer says %d", sum, sewing.Transfer.QuantityTransferred)
	}
	want := map[string]int{"S": 49, "M": 146, "L": 195, "XL": 97}
	for size, n := range want {
		if bySize[size] != n {
			t.Errorf("size %s carries %d, want %d", size, bySize[size], n)
		}
	}
}

func TestSizeCompletionsCarryIntoNextTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	id := order.ID.String()

	cutting := env.assign(t, id, model.ProcessCutting)
	stepID := cutting.Step.ID.String()
	if _, err := env.process.StartStep(ctx, stepID, StartStepRequest{ReceivedBy: "cutter.lan"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	step, err := env.process.CompleteStep(ctx, stepID, CompleteStepRequest{
		Sizes: []SizeCompletion{
			{Size: "s", Completed: 50},
			{Size: "M", Completed: 140},
			{Size: "L", Completed: 200},
			{Size: "XL", Completed: 100},
		},
		CompletedBy: "cutter.lan",
	})
	if err != nil {
		t.Fatalf("complete with sizes: %v", err)
	}
	if step.QuantityCompleted != 490 {
		t.Fatalf("completed %d, want the size total 490", step.QuantityCompleted)
	}

	sewing := env.assign(t, id, model.ProcessSewing)
	bySize, sum := itemTotal(sewing.Transfer.Items)
	if sum != 490 || sewing.Transfer.QuantityTransferred != 490 {
		t.Fatalf("items %d, transferred %d, want 490", sum, sewing.Transfer.QuantityTransferred)
	}
	if bySize["M"] != 140 || bySize["S"] != 50 {
		t.Fatalf("per-size output not carried: %v", bySize)
	}
}

func TestCompleteStepRejectsUnknownSizes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	res := env.assign(t, order.ID.String(), model.ProcessCutting)
	stepID := res.Step.ID.String()
	if _, err := env.process.StartStep(ctx, stepID, StartStepRequest{ReceivedBy: "cutter.lan"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	cases := map[string][]SizeCompletion{
		"unknown size":  {{Size: "XXXL", Completed: 5}},
		"repeated size": {{Size: "M", Completed: 5}, {Size: "m", Completed: 5}},
	}
	for name, sizes := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.process.CompleteStep(ctx, stepID, CompleteStepRequest{Sizes: sizes, CompletedBy: "cutter.lan"})
			expectCode(t, err, apperror.CodeInvalidInput)
		})
	}

	step, err := env.process.GetStep(ctx, stepID)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if step.Step.Status != model.StepInProgress {
		t.Fatalf("step %s after rejected completions, want %s", step.Step.Status, model.StepInProgress)
	}
}
