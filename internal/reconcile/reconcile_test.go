package reconcile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"transportagent/internal/logging"
	"transportagent/internal/model"
)

type fakeLookup map[int]model.ReturnStatus

func (f fakeLookup) Describe(ctx context.Context, code int, program string) (string, error) {
	if s, ok := f[code]; ok {
		return s.Describe(program), nil
	}
	return fmt.Sprintf("vendor row status %d", code), nil
}

type failingLookup struct{}

func (failingLookup) Describe(ctx context.Context, code int, program string) (string, error) {
	return "", errors.New("lookup unavailable")
}

var statuses = fakeLookup{
	10: {Code: 10, GetDataDescr: "Unknown security", GetHistoryDescr: "Unknown security for history"},
}

func newReconciler() *Reconciler {
	return New(statuses, logging.Discard())
}

func validItem(id int64) model.RequestItem {
	return model.RequestItem{
		ID:             id,
		Ticker:         "IBM US",
		YellowKey:      "Equity",
		Mnemonic:       "PX_LAST",
		ProgramCode:    model.ProgramGetData,
		RegisterSeries: true,
		Status:         model.ItemPending,
	}
}

func validRow(id int64) model.ResponseRow {
	return model.ResponseRow{
		ColumnTag:          fmt.Sprintf("##%d##", id),
		ColumnRowStatus:    "0",
		ColumnMarketSector: "Equity",
		"PX_LAST":          "101.5",
	}
}

func TestReconcile_Rules(t *testing.T) {
	tests := []struct {
		name       string
		mutateItem func(*model.RequestItem)
		mutateRow  func(model.ResponseRow)
		wantStatus model.ItemStatus
		wantMsg    string
		wantValue  string
	}{
		{
			name:       "valid",
			wantStatus: model.ItemValid,
			wantMsg:    MsgValid,
			wantValue:  "101.5",
		},
		{
			name:       "row status from lookup",
			mutateRow:  func(r model.ResponseRow) { r[ColumnRowStatus] = "10" },
			wantStatus: model.ItemInvalid,
			wantMsg:    "Unknown security",
			wantValue:  "101.5",
		},
		{
			name:       "row status described per program",
			mutateItem: func(i *model.RequestItem) { i.ProgramCode = model.ProgramGetHistory },
			mutateRow:  func(r model.ResponseRow) { r[ColumnRowStatus] = "10" },
			wantStatus: model.ItemInvalid,
			wantMsg:    "Unknown security for history",
			wantValue:  "101.5",
		},
		{
			name:       "unknown row status code",
			mutateRow:  func(r model.ResponseRow) { r[ColumnRowStatus] = "42" },
			wantStatus: model.ItemInvalid,
			wantMsg:    "vendor row status 42",
			wantValue:  "101.5",
		},
		{
			name:       "unreadable row status",
			mutateRow:  func(r model.ResponseRow) { r[ColumnRowStatus] = "n/a" },
			wantStatus: model.ItemInvalid,
			wantMsg:    MsgBadRowStatus,
			wantValue:  "101.5",
		},
		{
			name:       "field unknown",
			mutateRow:  func(r model.ResponseRow) { r["PX_LAST"] = FieldUnknown },
			wantStatus: model.ItemInvalid,
			wantMsg:    MsgInvalidMnemonic,
			wantValue:  FieldUnknown,
		},
		{
			name:       "mnemonic column missing",
			mutateRow:  func(r model.ResponseRow) { delete(r, "PX_LAST") },
			wantStatus: model.ItemInvalid,
			wantMsg:    MsgMissingMnemonic,
		},
		{
			name:       "yellow key mismatch",
			mutateRow:  func(r model.ResponseRow) { r[ColumnMarketSector] = "Corp" },
			wantStatus: model.ItemInvalid,
			wantMsg:    MsgYellowKeyMismatch,
			wantValue:  "101.5",
		},
		{
			name:       "not registered",
			mutateItem: func(i *model.RequestItem) { i.RegisterSeries = false },
			wantStatus: model.ItemOnHold,
			wantMsg:    MsgOnHold,
			wantValue:  "101.5",
		},
		{
			name:       "lowercase mnemonic matches uppercased column",
			mutateItem: func(i *model.RequestItem) { i.Mnemonic = "px_last" },
			wantStatus: model.ItemValid,
			wantMsg:    MsgValid,
			wantValue:  "101.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem(1)
			row := validRow(1)
			if tt.mutateItem != nil {
				tt.mutateItem(&item)
			}
			if tt.mutateRow != nil {
				tt.mutateRow(row)
			}

			got, err := newReconciler().Reconcile(context.Background(), []model.RequestItem{item}, []model.ResponseRow{row})
			if err != nil {
				t.Fatalf("Reconcile() returned unexpected error: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("len(result) = %d, want 1", len(got))
			}
			if got[0].Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got[0].Status, tt.wantStatus)
			}
			if got[0].PublicMsg != tt.wantMsg {
				t.Errorf("PublicMsg = %q, want %q", got[0].PublicMsg, tt.wantMsg)
			}
			if got[0].ReturnValue != tt.wantValue {
				t.Errorf("ReturnValue = %q, want %q", got[0].ReturnValue, tt.wantValue)
			}
		})
	}
}

// An INVALID verdict from an earlier rule must survive every later rule.
func TestReconcile_FirstViolationWins(t *testing.T) {
	item := validItem(1)
	item.RegisterSeries = false

	row := validRow(1)
	row[ColumnRowStatus] = "10"
	row["PX_LAST"] = FieldUnknown
	row[ColumnMarketSector] = "Govt"

	got, err := newReconciler().Reconcile(context.Background(), []model.RequestItem{item}, []model.ResponseRow{row})
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}
	if got[0].Status != model.ItemInvalid || got[0].PublicMsg != "Unknown security" {
		t.Errorf("got %q %q, want INVALID from the row status rule", got[0].Status, got[0].PublicMsg)
	}

	row[ColumnRowStatus] = "0"
	got, _ = newReconciler().Reconcile(context.Background(), []model.RequestItem{item}, []model.ResponseRow{row})
	if got[0].PublicMsg != MsgInvalidMnemonic {
		t.Errorf("PublicMsg = %q, want the mnemonic rule", got[0].PublicMsg)
	}
}

func TestReconcile_KeepsItemOrder(t *testing.T) {
	items := []model.RequestItem{validItem(3), validItem(1), validItem(2)}
	rows := []model.ResponseRow{validRow(1), validRow(2), validRow(3)}

	got, err := newReconciler().Reconcile(context.Background(), items, rows)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	var order []int64
	for _, rec := range got {
		order = append(order, rec.Item.ID)
		if rec.Row[ColumnTag] != fmt.Sprintf("##%d##", rec.Item.ID) {
			t.Errorf("item %d joined to row %v", rec.Item.ID, rec.Row[ColumnTag])
		}
	}
	if !reflect.DeepEqual(order, []int64{3, 1, 2}) {
		t.Errorf("order = %v, want [3 1 2]", order)
	}
}

func TestReconcile_Mismatch(t *testing.T) {
	tests := []struct {
		name  string
		items []model.RequestItem
		rows  []model.ResponseRow
		want  MismatchError
	}{
		{
			name:  "missing",
			items: []model.RequestItem{validItem(1), validItem(2)},
			rows:  []model.ResponseRow{validRow(1)},
			want:  MismatchError{Missing: []string{"2"}},
		},
		{
			name:  "duplicate",
			items: []model.RequestItem{validItem(1)},
			rows:  []model.ResponseRow{validRow(1), validRow(1)},
			want:  MismatchError{Duplicate: []string{"1"}},
		},
		{
			name:  "unknown",
			items: []model.RequestItem{validItem(1)},
			rows:  []model.ResponseRow{validRow(1), validRow(9)},
			want:  MismatchError{Unknown: []string{"9"}},
		},
		{
			name:  "empty response",
			items: []model.RequestItem{validItem(1)},
			want:  MismatchError{Missing: []string{"1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newReconciler().Reconcile(context.Background(), tt.items, tt.rows)
			var me *MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("Reconcile() error = %v, want *MismatchError", err)
			}
			if !reflect.DeepEqual(*me, tt.want) {
				t.Errorf("mismatch = %+v, want %+v", *me, tt.want)
			}
			if !IsMismatch(err) {
				t.Error("IsMismatch() = false")
			}
		})
	}
}

func TestReconcile_LookupFailure(t *testing.T) {
	row := validRow(1)
	row[ColumnRowStatus] = "10"

	_, err := New(failingLookup{}, logging.Discard()).Reconcile(context.Background(), []model.RequestItem{validItem(1)}, []model.ResponseRow{row})
	if err == nil {
		t.Fatal("Reconcile() expected error, got nil")
	}
	if IsMismatch(err) {
		t.Error("lookup failure reported as a mismatch")
	}
}

func TestMismatchError_Message(t *testing.T) {
	err := &MismatchError{Missing: []string{"1", "2"}, Unknown: []string{"7"}}
	want := "response does not match request: missing tags [1,2]; unknown tags [7]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
