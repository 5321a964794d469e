package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"transportagent/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleItems() []model.RequestItem {
	return []model.RequestItem{
		{Ticker: "IBM US", YellowKey: "Equity", Mnemonic: "PX_LAST", ProgramCode: model.ProgramGetData, InterfaceCode: model.InterfaceSAPI, RegisterSeries: true},
		{Ticker: "T 2 15", YellowKey: "Govt", Mnemonic: "YLD_YTM_MID", ProgramCode: model.ProgramGetHistory, InterfaceCode: "DL", StartDate: "20240101", EndDate: "20240131", PricingSource: "BGN"},
		{Ticker: "SPX", YellowKey: "Index", Mnemonic: "PX_LAST", ProgramCode: model.ProgramGetData, InterfaceCode: model.InterfaceSAPI, Overrides: "X=1"},
	}
}

func insertSample(t *testing.T, s *Store) []int64 {
	t.Helper()
	ids, err := s.InsertItems(context.Background(), sampleItems())
	if err != nil {
		t.Fatalf("InsertItems() returned unexpected error: %v", err)
	}
	return ids
}

func newBatch(t *testing.T, s *Store, priority int, items ...model.RequestItem) *model.Batch {
	t.Helper()
	b := &model.Batch{Key: items[0].Key(), Priority: priority, Items: items}
	if err := s.CreateBatch(context.Background(), b); err != nil {
		t.Fatalf("CreateBatch() returned unexpected error: %v", err)
	}
	return b
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("Open(blank) expected error, got nil")
	}
}

func TestInsertAndListUngrouped(t *testing.T) {
	s := openTestStore(t)
	ids := insertSample(t, s)
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}

	items, err := s.ListUngroupedItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListUngroupedItems() returned unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	got := items[1]
	if got.ID != ids[1] || got.Ticker != "T 2 15" || got.StartDate != "20240101" || got.PricingSource != "BGN" {
		t.Errorf("item = %+v", got)
	}
	if got.Status != model.ItemNew {
		t.Errorf("Status = %q, want NEW", got.Status)
	}
	if !items[0].RegisterSeries || items[1].RegisterSeries {
		t.Error("register_series not round-tripped")
	}

	limited, _ := s.ListUngroupedItems(context.Background(), 2)
	if len(limited) != 2 || limited[0].ID != ids[0] {
		t.Errorf("limited list = %+v", limited)
	}
}

func TestCreateBatch_AttachesItems(t *testing.T) {
	s := openTestStore(t)
	insertSample(t, s)
	ctx := context.Background()

	items, _ := s.ListUngroupedItems(ctx, 0)
	b := newBatch(t, s, 0, items[0], items[2])
	if b.ID == 0 {
		t.Fatal("batch id not assigned")
	}

	left, _ := s.ListUngroupedItems(ctx, 0)
	if len(left) != 1 || left[0].ID != items[1].ID {
		t.Errorf("ungrouped after batching = %+v", left)
	}

	got, err := s.GetBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBatch() returned unexpected error: %v", err)
	}
	if got.Status != model.BatchNew || got.Key != b.Key {
		t.Errorf("batch = %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0].BatchID != b.ID {
		t.Errorf("batch items = %+v", got.Items)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestCreateBatch_RejectsBatchedItem(t *testing.T) {
	s := openTestStore(t)
	insertSample(t, s)
	ctx := context.Background()

	items, _ := s.ListUngroupedItems(ctx, 0)
	first := newBatch(t, s, 0, items[0])

	err := s.CreateBatch(ctx, &model.Batch{Key: items[0].Key(), Items: []model.RequestItem{items[1], items[0]}})
	if err == nil {
		t.Fatal("CreateBatch() expected error for an already batched item")
	}

	// the failed transaction must not leave items[1] attached
	left, _ := s.ListUngroupedItems(ctx, 0)
	if len(left) != 2 {
		t.Errorf("ungrouped = %d, want 2 after rollback", len(left))
	}
	batches, _ := s.ListBatches(ctx, model.BatchNew, 0)
	if len(batches) != 1 || batches[0].ID != first.ID {
		t.Errorf("batches after rollback = %+v", batches)
	}
}

func TestListBatches_Order(t *testing.T) {
	s := openTestStore(t)
	insertSample(t, s)
	ctx := context.Background()

	items, _ := s.ListUngroupedItems(ctx, 0)
	low := newBatch(t, s, 3, items[1])
	high := newBatch(t, s, 0, items[0])
	tie := newBatch(t, s, 0, items[2])

	batches, err := s.ListBatches(ctx, model.BatchNew, 0)
	if err != nil {
		t.Fatalf("ListBatches() returned unexpected error: %v", err)
	}
	var order []int64
	for _, b := range batches {
		order = append(order, b.ID)
	}
	if want := []int64{high.ID, tie.ID, low.ID}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	limited, _ := s.ListBatches(ctx, model.BatchNew, 1)
	if len(limited) != 1 || limited[0].ID != high.ID {
		t.Errorf("limited = %+v", limited)
	}
}

func TestBatchLifecycle_Done(t *testing.T) {
	s := openTestStore(t)
	insertSample(t, s)
	ctx := context.Background()

	items, _ := s.ListUngroupedItems(ctx, 0)
	b := newBatch(t, s, 0, items[0], items[2])

	if err := s.MarkSubmitted(ctx, b.ID, "9001", model.VendorInitial, `{"x":1}`); err != nil {
		t.Fatalf("MarkSubmitted() returned unexpected error: %v", err)
	}
	if err := s.UpdateVendorStatus(ctx, b.ID, model.VendorPending); err != nil {
		t.Fatalf("UpdateVendorStatus() returned unexpected error: %v", err)
	}

	pending, _ := s.ListBatches(ctx, model.BatchPending, 0)
	if len(pending) != 1 {
		t.Fatalf("pending batches = %d, want 1", len(pending))
	}
	got := pending[0]
	if got.VendorRequestID != "9001" || got.VendorStatus != model.VendorPending || got.RequestPayload != `{"x":1}` {
		t.Errorf("pending batch = %+v", got)
	}
	for _, it := range got.Items {
		if it.Status != model.ItemPending {
			t.Errorf("item %d status = %q, want PENDING", it.ID, it.Status)
		}
	}

	results := []model.Reconciled{
		{Item: got.Items[0], Status: model.ItemValid, PublicMsg: "Series successfully processed", ReturnValue: "101.5"},
		{Item: got.Items[1], Status: model.ItemInvalid, PublicMsg: "Invalid vendor mnemonic", ReturnValue: "FLD UNKNOWN"},
	}
	if err := s.CompleteBatch(ctx, b.ID, results, "/landing/BT_20240102_1_9001gd.csv"); err != nil {
		t.Fatalf("CompleteBatch() returned unexpected error: %v", err)
	}

	done, _ := s.GetBatch(ctx, b.ID)
	if done.Status != model.BatchDone || done.VendorStatus != model.VendorSuccess {
		t.Errorf("batch = %q/%q, want DONE/SUCCESS", done.Status, done.VendorStatus)
	}
	if done.ResponseFilePath != "/landing/BT_20240102_1_9001gd.csv" {
		t.Errorf("ResponseFilePath = %q", done.ResponseFilePath)
	}
	if done.Items[0].Status != model.ItemValid || done.Items[0].ReturnValue != "101.5" {
		t.Errorf("item 0 = %+v", done.Items[0])
	}
	if done.Items[1].Status != model.ItemInvalid || done.Items[1].PublicMsg != "Invalid vendor mnemonic" {
		t.Errorf("item 1 = %+v", done.Items[1])
	}

	counts, err := s.CountItemsByStatus(ctx)
	if err != nil {
		t.Fatalf("CountItemsByStatus() returned unexpected error: %v", err)
	}
	want := map[model.ItemStatus]int{model.ItemNew: 1, model.ItemValid: 1, model.ItemInvalid: 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestFailBatch(t *testing.T) {
	s := openTestStore(t)
	insertSample(t, s)
	ctx := context.Background()

	items, _ := s.ListUngroupedItems(ctx, 0)
	b := newBatch(t, s, 0, items[0])

	err := s.FailBatch(ctx, b.ID, Failure{Message: "forbidden: not entitled", Payload: `{"y":2}`})
	if err != nil {
		t.Fatalf("FailBatch() returned unexpected error: %v", err)
	}

	got, _ := s.GetBatch(ctx, b.ID)
	if got.Status != model.BatchError || got.Message != "forbidden: not entitled" || got.RequestPayload != `{"y":2}` {
		t.Errorf("batch = %+v", got)
	}
	if got.Items[0].Status != model.ItemError || got.Items[0].PublicMsg != "forbidden: not entitled" {
		t.Errorf("item = %+v", got.Items[0])
	}

	counts, _ := s.CountBatchesByStatus(ctx)
	if counts[model.BatchError] != 1 {
		t.Errorf("error batches = %d, want 1", counts[model.BatchError])
	}
}

func TestUpdates_UnknownBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpdateVendorStatus(ctx, 404, model.VendorPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateVendorStatus() error = %v, want ErrNotFound", err)
	}
	if err := s.FailBatch(ctx, 404, Failure{Message: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailBatch() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetBatch(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBatch() error = %v, want ErrNotFound", err)
	}
}

func TestReturnStatuses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertReturnStatuses(ctx, []model.ReturnStatus{
		{Code: 10, GetDataDescr: "Unknown security"},
		{Code: 11, GetDataDescr: "Not entitled", GetHistoryDescr: "Not entitled (history)"},
	})
	if err != nil || n != 2 {
		t.Fatalf("UpsertReturnStatuses() = %d, %v", n, err)
	}

	// a second import replaces descriptions
	if _, err := s.UpsertReturnStatuses(ctx, []model.ReturnStatus{{Code: 10, GetDataDescr: "Unknown ticker"}}); err != nil {
		t.Fatalf("UpsertReturnStatuses() returned unexpected error: %v", err)
	}

	st, ok, err := s.ReturnStatus(ctx, 10)
	if err != nil || !ok {
		t.Fatalf("ReturnStatus(10) = %v, %v", ok, err)
	}
	if st.GetDataDescr != "Unknown ticker" {
		t.Errorf("GetDataDescr = %q, want %q", st.GetDataDescr, "Unknown ticker")
	}

	if _, ok, err := s.ReturnStatus(ctx, 99); ok || err != nil {
		t.Errorf("ReturnStatus(99) = %v, %v; want not found without error", ok, err)
	}

	all, _ := s.ReturnStatuses(ctx)
	if len(all) != 2 || all[1].GetHistoryDescr != "Not entitled (history)" {
		t.Errorf("ReturnStatuses() = %+v", all)
	}
}
