package service

import (
	"bytes"
	"context"
	"testing"

	"garmentflow/internal/model"
	"garmentflow/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func (e *testEnv) createItem(t *testing.T, kind model.StockItemKind, code, unit string, minimum int64) *StockItemResponse {
	t.Helper()
	item, err := e.stock.CreateItem(context.Background(), testActor, kind, CreateStockItemRequest{
		Code:         code,
		Name:         code + " item",
		Unit:         unit,
		MinimumStock: decimal.NewFromInt(minimum),
	})
	if err != nil {
		t.Fatalf("create %s %s: %v", kind, code, err)
	}
	return item
}

func (e *testEnv) move(t *testing.T, kind model.StockItemKind, itemID, txType string, qty string) *LedgerEntryResponse {
	t.Helper()
	res, err := e.stock.RecordTransaction(context.Background(), testActor, kind, itemID, RecordTransactionRequest{
		TransactionType: txType,
		Quantity:        decimal.RequireFromString(qty),
	})
	if err != nil {
		t.Fatalf("%s %s: %v", txType, qty, err)
	}
	return res
}

func (e *testEnv) ledgerSum(t *testing.T, kind model.StockItemKind, itemID string) decimal.Decimal {
	t.Helper()
	entries, _, err := e.stock.ListTransactions(context.Background(), kind, itemID, 1, 1000)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	sum := decimal.Zero
	for _, en := range entries {
		sum = sum.Add(en.Quantity)
	}
	return sum
}

func TestCurrentStockIsLedgerSum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fabric := env.createItem(t, model.KindMaterial, "FAB-JER-180", "m", 50)

	moves := []struct {
		txType string
		qty    string
		want   string
	}{
		{model.TxTypeIn, "120.5", "120.5"},
		{model.TxTypeOut, "20.25", "100.25"},
		{model.TxTypeAdjustment, "-0.25", "100"},
		{model.TxTypeReturn, "4", "104"},
		{model.TxTypeOut, "60", "44"},
	}
	for _, m := range moves {
		res := env.move(t, model.KindMaterial, fabric.ID, m.txType, m.qty)
		if !res.CurrentStock.Equal(decimal.RequireFromString(m.want)) {
			t.Fatalf("after %s %s stock = %s, want %s", m.txType, m.qty, res.CurrentStock, m.want)
		}

		current, err := env.stock.CurrentStock(ctx, model.KindMaterial, fabric.ID)
		if err != nil {
			t.Fatalf("current stock: %v", err)
		}
		if sum := env.ledgerSum(t, model.KindMaterial, fabric.ID); !current.Equal(sum) {
			t.Fatalf("current stock %s differs from ledger sum %s", current, sum)
		}
	}

	got, err := env.stock.GetItem(ctx, model.KindMaterial, fabric.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !got.IsLowStock {
		t.Fatalf("44 m against a 50 m minimum should be low stock")
	}

	low, err := env.stock.LowStockItems(ctx, model.KindMaterial)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].ID != fabric.ID {
		t.Fatalf("low stock items = %+v", low)
	}
}

func TestOutboundStoredNegated(t *testing.T) {
	env := newTestEnv(t)
	zip := env.createItem(t, model.KindAccessory, "ZIP-18", "pcs", 0)
	env.move(t, model.KindAccessory, zip.ID, model.TxTypeIn, "100")

	res := env.move(t, model.KindAccessory, zip.ID, model.TxTypeOut, "30")
	if !res.Entry.Quantity.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("out row quantity = %s, want -30", res.Entry.Quantity)
	}
	if res.Entry.Unit != "pcs" {
		t.Fatalf("unit defaults to the item unit, got %q", res.Entry.Unit)
	}
}

func TestInsufficientStockLeavesLedgerUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	thread := env.createItem(t, model.KindAccessory, "THR-40", "cone", 0)
	env.move(t, model.KindAccessory, thread.ID, model.TxTypeIn, "12")

	before := env.ledgerSum(t, model.KindAccessory, thread.ID)
	rows := env.count(t, &model.AccessoryStockTransaction{})

	for _, req := range []RecordTransactionRequest{
		{TransactionType: model.TxTypeOut, Quantity: decimal.NewFromInt(13)},
		{TransactionType: model.TxTypeAdjustment, Quantity: decimal.NewFromInt(-20)},
	} {
		_, err := env.stock.RecordTransaction(ctx, testActor, model.KindAccessory, thread.ID, req)
		expectCode(t, err, apperror.CodeInsufficientStock)
	}

	if after := env.ledgerSum(t, model.KindAccessory, thread.ID); !after.Equal(before) {
		t.Fatalf("ledger sum moved from %s to %s", before, after)
	}
	if n := env.count(t, &model.AccessoryStockTransaction{}); n != rows {
		t.Fatalf("ledger rows %d, want %d", n, rows)
	}
}

func TestRecordTransactionValidatesQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	button := env.createItem(t, model.KindAccessory, "BTN-4H", "pcs", 0)

	cases := []RecordTransactionRequest{
		{TransactionType: model.TxTypeIn, Quantity: decimal.Zero},
		{TransactionType: model.TxTypeIn, Quantity: decimal.NewFromInt(-5)},
		{TransactionType: model.TxTypeAdjustment, Quantity: decimal.Zero},
		{TransactionType: "transfer", Quantity: decimal.NewFromInt(1)},
	}
	for _, req := range cases {
		_, err := env.stock.RecordTransaction(ctx, testActor, model.KindAccessory, button.ID, req)
		expectCode(t, err, apperror.CodeInvalidInput)
	}

	_, err := env.stock.RecordTransaction(ctx, testActor, model.KindMaterial, button.ID, RecordTransactionRequest{
		TransactionType: model.TxTypeIn,
		Quantity:        decimal.NewFromInt(1),
	})
	expectCode(t, err, apperror.CodeItemNotFound)
}

func TestCreateItemRejectsDuplicateCode(t *testing.T) {
	env := newTestEnv(t)
	env.createItem(t, model.KindMaterial, "FAB-TWL", "m", 0)

	_, err := env.stock.CreateItem(context.Background(), testActor, model.KindMaterial, CreateStockItemRequest{
		Code: "FAB-TWL", Name: "Twill again", Unit: "m",
	})
	expectCode(t, err, apperror.CodeDuplicate)
}

func TestDeleteItemRequiresEmptyBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	label := env.createItem(t, model.KindAccessory, "LBL-CARE", "pcs", 0)
	env.move(t, model.KindAccessory, label.ID, model.TxTypeIn, "10")

	err := env.stock.DeleteItem(ctx, testActor, model.KindAccessory, label.ID)
	expectCode(t, err, apperror.CodeInvalidInput)

	env.move(t, model.KindAccessory, label.ID, model.TxTypeOut, "10")
	if err := env.stock.DeleteItem(ctx, testActor, model.KindAccessory, label.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = env.stock.GetItem(ctx, model.KindAccessory, label.ID)
	expectCode(t, err, apperror.CodeItemNotFound)

	_, err = env.stock.CreateItem(ctx, testActor, model.KindAccessory, CreateStockItemRequest{
		Code: "LBL-CARE", Name: "Care label v2", Unit: "pcs",
	})
	expectCode(t, err, apperror.CodeDuplicate)
}

func TestIssueForOrderIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	fabric := env.createItem(t, model.KindMaterial, "FAB-PIQ", "m", 0)
	buttons := env.createItem(t, model.KindAccessory, "BTN-POLO", "pcs", 0)
	env.move(t, model.KindMaterial, fabric.ID, model.TxTypeIn, "800")
	env.move(t, model.KindAccessory, buttons.ID, model.TxTypeIn, "1000")

	_, err := env.stock.SetRequirements(ctx, testActor, order.ID.String(), SetRequirementsRequest{Items: []RequirementLine{
		{Kind: string(model.KindMaterial), ItemID: fabric.ID, QuantityRequired: decimal.NewFromInt(600)},
		{Kind: string(model.KindAccessory), ItemID: buttons.ID, QuantityRequired: decimal.NewFromInt(1500)},
	}})
	if err != nil {
		t.Fatalf("set requirements: %v", err)
	}

	_, err = env.stock.IssueForOrder(ctx, testActor, order.ID.String(), IssueMaterialsRequest{PerformedBy: "store.hoa"})
	expectCode(t, err, apperror.CodeInsufficientStock)

	// the fabric issue happened before the buttons failed and must be rolled back
	if cur, _ := env.stock.CurrentStock(ctx, model.KindMaterial, fabric.ID); !cur.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("fabric stock %s after failed issue, want 800", cur)
	}
	if n := env.count(t, &model.MaterialStockTransaction{}); n != 1 {
		t.Fatalf("material ledger rows = %d, want 1", n)
	}
	reqs, err := env.stock.ListRequirements(ctx, order.ID.String())
	if err != nil {
		t.Fatalf("list requirements: %v", err)
	}
	for _, r := range reqs {
		if !r.QuantityIssued.IsZero() {
			t.Fatalf("%s issued %s after failed issue", r.ItemCode, r.QuantityIssued)
		}
	}

	env.move(t, model.KindAccessory, buttons.ID, model.TxTypeIn, "500")
	res, err := env.stock.IssueForOrder(ctx, testActor, order.ID.String(), IssueMaterialsRequest{PerformedBy: "store.hoa"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(res.Issued) != 2 {
		t.Fatalf("issued %d lines, want 2", len(res.Issued))
	}
	if cur, _ := env.stock.CurrentStock(ctx, model.KindMaterial, fabric.ID); !cur.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("fabric stock %s, want 200", cur)
	}
	if cur, _ := env.stock.CurrentStock(ctx, model.KindAccessory, buttons.ID); !cur.IsZero() {
		t.Fatalf("button stock %s, want 0", cur)
	}

	// nothing outstanding, nothing issued
	again, err := env.stock.IssueForOrder(ctx, testActor, order.ID.String(), IssueMaterialsRequest{PerformedBy: "store.hoa"})
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if len(again.Issued) != 0 {
		t.Fatalf("second issue moved %d lines", len(again.Issued))
	}
}

func TestReturnForOrderBooksLeftovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	fabric := env.createItem(t, model.KindMaterial, "FAB-RIB", "m", 0)
	env.move(t, model.KindMaterial, fabric.ID, model.TxTypeIn, "100")

	if _, err := env.stock.SetRequirements(ctx, testActor, order.ID.String(), SetRequirementsRequest{Items: []RequirementLine{
		{Kind: string(model.KindMaterial), ItemID: fabric.ID, QuantityRequired: decimal.NewFromInt(80)},
	}}); err != nil {
		t.Fatalf("set requirements: %v", err)
	}
	if _, err := env.stock.IssueForOrder(ctx, testActor, order.ID.String(), IssueMaterialsRequest{}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	reqs, err := env.stock.ReturnForOrder(ctx, testActor, order.ID.String(), ReturnMaterialsRequest{Items: []ReturnLine{{
		Kind:             string(model.KindMaterial),
		ItemID:           fabric.ID,
		QuantityReturned: decimal.NewFromInt(6),
		QuantityUsed:     decimal.NewFromInt(72),
		QuantityWasted:   decimal.NewFromInt(2),
	}}})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if len(reqs) != 1 || !reqs[0].QuantityReturned.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("requirements after return: %+v", reqs)
	}
	if cur, _ := env.stock.CurrentStock(ctx, model.KindMaterial, fabric.ID); !cur.Equal(decimal.NewFromInt(26)) {
		t.Fatalf("fabric stock %s after return, want 26", cur)
	}
}

func TestExportItemsWritesWorkbook(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.createItem(t, model.KindMaterial, "FAB-OXF", "m", 10)
	env.move(t, model.KindMaterial, fabric.ID, model.TxTypeIn, "42")

	var buf bytes.Buffer
	if err := env.stock.ExportItems(context.Background(), model.KindMaterial, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("workbook has %d rows, want header and one item", len(rows))
	}
	if rows[1][0] != "FAB-OXF" {
		t.Fatalf("first data cell = %q", rows[1][0])
	}
}
