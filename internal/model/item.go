// Package model holds the request items, batches and reconciliation results
// shared by every stage of the request/poll pipeline.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Program codes understood by the batch transport
const (
	ProgramGetData    = "GETDATA"
	ProgramGetHistory = "GETHISTORY"
)

// InterfaceSAPI is the interface code that gets submitted ahead of the others
const InterfaceSAPI = "SAPI"

// RequestItem is one series to fetch from the vendor
type RequestItem struct {
	ID               int64
	Ticker           string
	YellowKey        string
	Mnemonic         string
	Overrides        string
	OptionalElements string
	PricingSource    string
	ProgramCode      string
	InterfaceCode    string
	StartDate        string
	EndDate          string
	RegisterSeries   bool

	Status      ItemStatus
	BatchID     int64
	PublicMsg   string
	ReturnValue string
}

// Tag returns the correlation tag sent with the item and echoed back by the vendor
func (r RequestItem) Tag() string {
	return strconv.FormatInt(r.ID, 10)
}

// Query builds the vendor security query: "<ticker> <yellow key>" followed by
// the overrides and optional elements, each prefixed with '|'.
func (r RequestItem) Query() string {
	query := strings.TrimSpace(r.Ticker) + " " + strings.TrimSpace(r.YellowKey)
	if len(r.Overrides) > 1 {
		query += "|" + r.Overrides
	}
	if len(r.OptionalElements) > 1 {
		query += "|" + r.OptionalElements
	}
	return query
}

// Key returns the grouping key for the item
func (r RequestItem) Key() BatchKey {
	key := BatchKey{
		ProgramCode:      r.ProgramCode,
		InterfaceCode:    r.InterfaceCode,
		ExclusivePricing: r.PricingSource != "",
	}
	// only history requests carry a date range
	if r.ProgramCode == ProgramGetHistory {
		key.StartDate = r.StartDate
		key.EndDate = r.EndDate
	}
	return key
}

// BatchKey is the set of attributes every item of a batch shares
type BatchKey struct {
	ProgramCode      string
	InterfaceCode    string
	StartDate        string
	EndDate          string
	ExclusivePricing bool
}

// DateRange formats the history window as the vendor expects it
func (k BatchKey) DateRange() string {
	return k.StartDate + "|" + k.EndDate
}

// Batch is a group of request items submitted together
type Batch struct {
	ID               int64
	Key              BatchKey
	Priority         int
	Status           BatchStatus
	VendorRequestID  string
	VendorStatus     VendorStatus
	RequestPayload   string
	ResponseFilePath string
	Message          string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []RequestItem
}

// Tags returns the correlation tags of the batch items in order
func (b Batch) Tags() []string {
	tags := make([]string, len(b.Items))
	for i, item := range b.Items {
		tags[i] = item.Tag()
	}
	return tags
}

// ResponseRow is one row of the vendor payload, keyed by column name
type ResponseRow map[string]string

// Reconciled is a request item merged with its response row
type Reconciled struct {
	Item        RequestItem
	Row         ResponseRow
	Status      ItemStatus
	PublicMsg   string
	ReturnValue string
}

// ReturnStatus describes a vendor row status code per program
type ReturnStatus struct {
	Code            int
	GetDataDescr    string
	GetHistoryDescr string
}

// Describe returns the description matching the program code
func (s ReturnStatus) Describe(programCode string) string {
	if programCode == ProgramGetHistory && s.GetHistoryDescr != "" {
		return s.GetHistoryDescr
	}
	return s.GetDataDescr
}
