// Package reconcile matches vendor response rows to the request items that
// produced them and classifies each item.
//
// Rules run in a fixed order and the first failing rule decides the outcome:
//
//  1. a non-zero ROW_STATUS makes the item INVALID, described by the
//     return-status lookup
//  2. a requested mnemonic returned as FLD UNKNOWN, or not returned at all,
//     makes the item INVALID
//  3. a yellow key differing from MARKET_SECTOR_DES makes the item INVALID
//  4. an item whose series is not registered is put ONHOLD
//  5. anything else is VALID
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"transportagent/internal/model"
)

// Response columns read by the reconciler
const (
	ColumnTag          = "REQUESTOR_TAG"
	ColumnRowStatus    = "ROW_STATUS"
	ColumnMarketSector = "MARKET_SECTOR_DES"
)

// FieldUnknown is what the vendor returns for a mnemonic it does not know
const FieldUnknown = "FLD UNKNOWN"

// Public messages stored on reconciled items
const (
	MsgValid             = "Series successfully processed"
	MsgOnHold            = "Series is not registered"
	MsgInvalidMnemonic   = "Invalid vendor mnemonic"
	MsgMissingMnemonic   = "Requested mnemonic not returned"
	MsgYellowKeyMismatch = "Requested yellow key is not matching the returned yellow key"
	MsgBadRowStatus      = "Unreadable row status"
)

// StatusLookup describes vendor row-status codes
type StatusLookup interface {
	Describe(ctx context.Context, code int, programCode string) (string, error)
}

// Reconciler classifies response rows
type Reconciler struct {
	lookup StatusLookup
	log    *logrus.Entry
}

// New creates a Reconciler
func New(lookup StatusLookup, log *logrus.Entry) *Reconciler {
	return &Reconciler{lookup: lookup, log: log}
}

// Reconcile joins rows to items by correlation tag and classifies every item.
// Results follow the order of items. Any missing, duplicated or unknown tag
// fails the whole call with a *MismatchError.
func (r *Reconciler) Reconcile(ctx context.Context, items []model.RequestItem, rows []model.ResponseRow) ([]model.Reconciled, error) {
	byTag, err := correlate(items, rows)
	if err != nil {
		return nil, err
	}

	out := make([]model.Reconciled, 0, len(items))
	counts := make(map[model.ItemStatus]int)
	for _, item := range items {
		rec, err := r.classify(ctx, item, byTag[item.Tag()])
		if err != nil {
			return nil, fmt.Errorf("reconcile item %d: %w", item.ID, err)
		}
		counts[rec.Status]++
		out = append(out, rec)
	}

	r.log.WithFields(logrus.Fields{
		"items":   len(out),
		"valid":   counts[model.ItemValid],
		"invalid": counts[model.ItemInvalid],
		"onhold":  counts[model.ItemOnHold],
	}).Info("batch reconciled")

	return out, nil
}

func (r *Reconciler) classify(ctx context.Context, item model.RequestItem, row model.ResponseRow) (model.Reconciled, error) {
	rec := model.Reconciled{Item: item, Row: row}

	mnemonic := strings.ToUpper(strings.TrimSpace(item.Mnemonic))
	value, returned := row[mnemonic]
	if returned {
		rec.ReturnValue = value
	}

	code, err := strconv.Atoi(strings.TrimSpace(row[ColumnRowStatus]))
	if err != nil {
		return invalid(rec, MsgBadRowStatus), nil
	}
	if code != 0 {
		msg, err := r.lookup.Describe(ctx, code, item.ProgramCode)
		if err != nil {
			return rec, fmt.Errorf("describe row status %d: %w", code, err)
		}
		return invalid(rec, msg), nil
	}

	if !returned {
		return invalid(rec, MsgMissingMnemonic), nil
	}
	if value == FieldUnknown {
		return invalid(rec, MsgInvalidMnemonic), nil
	}

	if strings.TrimSpace(item.YellowKey) != strings.TrimSpace(row[ColumnMarketSector]) {
		return invalid(rec, MsgYellowKeyMismatch), nil
	}

	if !item.RegisterSeries {
		rec.Status = model.ItemOnHold
		rec.PublicMsg = MsgOnHold
		return rec, nil
	}

	rec.Status = model.ItemValid
	rec.PublicMsg = MsgValid
	return rec, nil
}

func invalid(rec model.Reconciled, msg string) model.Reconciled {
	rec.Status = model.ItemInvalid
	rec.PublicMsg = msg
	return rec
}

// Tag extracts the correlation tag of a response row
func Tag(row model.ResponseRow) string {
	return strings.TrimSpace(strings.ReplaceAll(row[ColumnTag], "##", ""))
}

func correlate(items []model.RequestItem, rows []model.ResponseRow) (map[string]model.ResponseRow, error) {
	expected := make(map[string]bool, len(items))
	for _, item := range items {
		expected[item.Tag()] = true
	}

	var mismatch MismatchError
	byTag := make(map[string]model.ResponseRow, len(rows))
	for _, row := range rows {
		tag := Tag(row)
		if !expected[tag] {
			mismatch.Unknown = append(mismatch.Unknown, tag)
			continue
		}
		if _, seen := byTag[tag]; seen {
			mismatch.Duplicate = append(mismatch.Duplicate, tag)
			continue
		}
		byTag[tag] = row
	}
	for _, item := range items {
		if _, ok := byTag[item.Tag()]; !ok {
			mismatch.Missing = append(mismatch.Missing, item.Tag())
		}
	}

	if mismatch.empty() {
		return byTag, nil
	}
	return nil, &mismatch
}
