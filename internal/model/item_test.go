package model

import "testing"

func TestRequestItem_Query(t *testing.T) {
	tests := []struct {
		name string
		item RequestItem
		want string
	}{
		{"plain", RequestItem{Ticker: "IBM US", YellowKey: "Equity"}, "IBM US Equity"},
		{"overrides", RequestItem{Ticker: "IBM US", YellowKey: "Equity", Overrides: "EQY_FUND_CRNCY=EUR"}, "IBM US Equity|EQY_FUND_CRNCY=EUR"},
		{"both", RequestItem{Ticker: "T 2 05/31/30", YellowKey: "Govt", Overrides: "PRICING_SOURCE=BGN", OptionalElements: "DATE=20240101"}, "T 2 05/31/30 Govt|PRICING_SOURCE=BGN|DATE=20240101"},
		{"single char ignored", RequestItem{Ticker: "SPX", YellowKey: "Index", Overrides: "x", OptionalElements: "y"}, "SPX Index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Query(); got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestItem_Key(t *testing.T) {
	data := RequestItem{ProgramCode: ProgramGetData, InterfaceCode: InterfaceSAPI, StartDate: "20240101", EndDate: "20240131"}
	if key := data.Key(); key.StartDate != "" || key.EndDate != "" {
		t.Errorf("GETDATA key carries a date range: %+v", key)
	}

	history := RequestItem{ProgramCode: ProgramGetHistory, InterfaceCode: "DL", StartDate: "20240101", EndDate: "20240131", PricingSource: "BGN"}
	key := history.Key()
	if key.DateRange() != "20240101|20240131" {
		t.Errorf("DateRange() = %q, want %q", key.DateRange(), "20240101|20240131")
	}
	if !key.ExclusivePricing {
		t.Error("ExclusivePricing = false, want true for item with pricing source")
	}
}

func TestVendorStatus(t *testing.T) {
	tests := []struct {
		status   VendorStatus
		terminal bool
		isError  bool
	}{
		{VendorInitial, false, false},
		{VendorPending, false, false},
		{VendorSuccess, true, false},
		{VendorTransportFail, true, true},
		{VendorUpstreamFail, true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.IsError(); got != tt.isError {
				t.Errorf("IsError() = %v, want %v", got, tt.isError)
			}
		})
	}
}

func TestReturnStatus_Describe(t *testing.T) {
	s := ReturnStatus{Code: 10, GetDataDescr: "Unknown security", GetHistoryDescr: "No history"}
	if got := s.Describe(ProgramGetData); got != "Unknown security" {
		t.Errorf("Describe(GETDATA) = %q", got)
	}
	if got := s.Describe(ProgramGetHistory); got != "No history" {
		t.Errorf("Describe(GETHISTORY) = %q", got)
	}

	s.GetHistoryDescr = ""
	if got := s.Describe(ProgramGetHistory); got != "Unknown security" {
		t.Errorf("Describe(GETHISTORY) without history text = %q, want fallback", got)
	}
}
