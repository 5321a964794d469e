package store

import (
	"context"
	"database/sql"
	"fmt"

	"transportagent/internal/model"
)

const itemColumns = `id, ticker, yellow_key, mnemonic, overrides, optional_elements, pricing_source,
    program_code, interface_code, start_date, end_date, register_series, status,
    COALESCE(batch_id, 0), public_msg, return_value`

// InsertItems stores new request items and returns their ids.
// Items without a status are stored as NEW.
func (s *Store) InsertItems(ctx context.Context, items []model.RequestItem) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO request_item (ticker, yellow_key, mnemonic, overrides, optional_elements, pricing_source,
    program_code, interface_code, start_date, end_date, register_series, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
		if err != nil {
			return fmt.Errorf("prepare insert item: %w", err)
		}
		defer stmt.Close()

		for _, it := range items {
			status := it.Status
			if status == "" {
				status = model.ItemNew
			}
			res, err := stmt.ExecContext(ctx, it.Ticker, it.YellowKey, it.Mnemonic, it.Overrides,
				it.OptionalElements, it.PricingSource, it.ProgramCode, it.InterfaceCode,
				it.StartDate, it.EndDate, boolInt(it.RegisterSeries), string(status))
			if err != nil {
				return fmt.Errorf("insert item %s: %w", it.Ticker, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert item id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListUngroupedItems returns NEW items not attached to a batch, oldest first.
// A non-positive limit returns all of them.
func (s *Store) ListUngroupedItems(ctx context.Context, limit int) ([]model.RequestItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM request_item
WHERE status = ? AND batch_id IS NULL
ORDER BY id
LIMIT ?
`, string(model.ItemNew), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list ungrouped items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListItems returns every item with the given status, or all items when
// status is empty
func (s *Store) ListItems(ctx context.Context, status model.ItemStatus) ([]model.RequestItem, error) {
	query := `SELECT ` + itemColumns + ` FROM request_item`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountItemsByStatus returns the number of items per status
func (s *Store) CountItemsByStatus(ctx context.Context) (map[model.ItemStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM request_item GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ItemStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan item count: %w", err)
		}
		counts[model.ItemStatus(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (model.RequestItem, error) {
	var it model.RequestItem
	var register int
	var status string
	err := sc.Scan(&it.ID, &it.Ticker, &it.YellowKey, &it.Mnemonic, &it.Overrides, &it.OptionalElements,
		&it.PricingSource, &it.ProgramCode, &it.InterfaceCode, &it.StartDate, &it.EndDate, &register,
		&status, &it.BatchID, &it.PublicMsg, &it.ReturnValue)
	if err != nil {
		return it, err
	}
	it.RegisterSeries = register != 0
	it.Status = model.ItemStatus(status)
	return it, nil
}

func scanItems(rows *sql.Rows) ([]model.RequestItem, error) {
	var items []model.RequestItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
