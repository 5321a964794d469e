package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transportagent/internal/model"
)

// Failure is what gets recorded on a failed batch. Empty fields leave the
// stored values untouched.
type Failure struct {
	Message      string
	VendorStatus model.VendorStatus
	Payload      string
}

// CreateBatch inserts batch as NEW and attaches its items in one transaction.
// The generated id is written back to batch and its items.
func (s *Store) CreateBatch(ctx context.Context, batch *model.Batch) error {
	if len(batch.Items) == 0 {
		return fmt.Errorf("create batch: no items")
	}
	if batch.Status == "" {
		batch.Status = model.BatchNew
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO batch (program_code, interface_code, start_date, end_date, exclusive_pricing, priority, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, batch.Key.ProgramCode, batch.Key.InterfaceCode, batch.Key.StartDate, batch.Key.EndDate,
			boolInt(batch.Key.ExclusivePricing), batch.Priority, string(batch.Status))
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert batch id: %w", err)
		}

		for i := range batch.Items {
			res, err := tx.ExecContext(ctx, `
UPDATE request_item
SET batch_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND batch_id IS NULL
`, id, batch.Items[i].ID)
			if err != nil {
				return fmt.Errorf("attach item %d: %w", batch.Items[i].ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("attach item %d: item missing or already batched", batch.Items[i].ID)
			}
			batch.Items[i].BatchID = id
		}

		batch.ID = id
		return nil
	})
}

// ListBatches returns batches in the given status ordered by priority then id,
// with their items. A non-positive limit returns all of them.
func (s *Store) ListBatches(ctx context.Context, status model.BatchStatus, limit int) ([]model.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, program_code, interface_code, start_date, end_date, exclusive_pricing, priority, status,
    vendor_request_id, vendor_status, request_payload, response_file_path, message, created_at, updated_at
FROM batch
WHERE status = ?
ORDER BY priority, id
LIMIT ?
`, string(status), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	rows.Close()

	// items are loaded after the batch cursor is closed: the pool has a single connection
	for i := range batches {
		items, err := s.batchItems(ctx, batches[i].ID)
		if err != nil {
			return nil, err
		}
		batches[i].Items = items
	}
	return batches, nil
}

// GetBatch returns one batch with its items
func (s *Store) GetBatch(ctx context.Context, id int64) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, program_code, interface_code, start_date, end_date, exclusive_pricing, priority, status,
    vendor_request_id, vendor_status, request_payload, response_file_path, message, created_at, updated_at
FROM batch
WHERE id = ?
`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %d: %w", id, err)
	}

	b.Items, err = s.batchItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBatchesByStatus returns the number of batches per status
func (s *Store) CountBatchesByStatus(ctx context.Context) (map[model.BatchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM batch GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.BatchStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan batch count: %w", err)
		}
		counts[model.BatchStatus(status)] = n
	}
	return counts, rows.Err()
}

// MarkSubmitted records the vendor acknowledgement and moves the batch and
// its items to PENDING
func (s *Store) MarkSubmitted(ctx context.Context, batchID int64, vendorRequestID string, vendorStatus model.VendorStatus, payload string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateBatch(ctx, tx, `
UPDATE batch
SET status = ?, vendor_request_id = ?, vendor_status = ?, request_payload = ?, message = '',
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, string(model.BatchPending), vendorRequestID, string(vendorStatus), payload, batchID); err != nil {
			return fmt.Errorf("mark batch %d submitted: %w", batchID, err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE request_item
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE batch_id = ?
`, string(model.ItemPending), batchID); err != nil {
			return fmt.Errorf("mark items of batch %d pending: %w", batchID, err)
		}
		return nil
	})
}

// UpdateVendorStatus refreshes the vendor status of a batch still in flight
func (s *Store) UpdateVendorStatus(ctx context.Context, batchID int64, vendorStatus model.VendorStatus) error {
	err := updateBatch(ctx, s.db, `
UPDATE batch
SET vendor_status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, string(vendorStatus), batchID)
	if err != nil {
		return fmt.Errorf("update vendor status of batch %d: %w", batchID, err)
	}
	return nil
}

// FailBatch moves the batch and all of its items to ERROR with the failure message
func (s *Store) FailBatch(ctx context.Context, batchID int64, f Failure) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateBatch(ctx, tx, `
UPDATE batch
SET status = ?, message = ?,
    vendor_status = COALESCE(NULLIF(?, ''), vendor_status),
    request_payload = COALESCE(NULLIF(?, ''), request_payload),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, string(model.BatchError), f.Message, string(f.VendorStatus), f.Payload, batchID); err != nil {
			return fmt.Errorf("fail batch %d: %w", batchID, err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE request_item
SET status = ?, public_msg = ?, updated_at = CURRENT_TIMESTAMP
WHERE batch_id = ?
`, string(model.ItemError), f.Message, batchID); err != nil {
			return fmt.Errorf("fail items of batch %d: %w", batchID, err)
		}
		return nil
	})
}

// CompleteBatch stores the reconciled items and marks the batch DONE
func (s *Store) CompleteBatch(ctx context.Context, batchID int64, results []model.Reconciled, responseFile string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
UPDATE request_item
SET status = ?, public_msg = ?, return_value = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND batch_id = ?
`)
		if err != nil {
			return fmt.Errorf("prepare item update: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			res, err := stmt.ExecContext(ctx, string(r.Status), r.PublicMsg, r.ReturnValue, r.Item.ID, batchID)
			if err != nil {
				return fmt.Errorf("update item %d: %w", r.Item.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("update item %d: not in batch %d", r.Item.ID, batchID)
			}
		}

		if err := updateBatch(ctx, tx, `
UPDATE batch
SET status = ?, vendor_status = ?, response_file_path = ?, message = '', updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, string(model.BatchDone), string(model.VendorSuccess), responseFile, batchID); err != nil {
			return fmt.Errorf("complete batch %d: %w", batchID, err)
		}
		return nil
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// updateBatch runs a single-row batch update and reports ErrNotFound when
// nothing matched
func updateBatch(ctx context.Context, db execer, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) batchItems(ctx context.Context, batchID int64) ([]model.RequestItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+itemColumns+`
FROM request_item
WHERE batch_id = ?
ORDER BY id
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list items of batch %d: %w", batchID, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanBatch(sc scanner) (model.Batch, error) {
	var b model.Batch
	var exclusive int
	var status, vendorStatus string
	var created, updated time.Time
	err := sc.Scan(&b.ID, &b.Key.ProgramCode, &b.Key.InterfaceCode, &b.Key.StartDate, &b.Key.EndDate,
		&exclusive, &b.Priority, &status, &b.VendorRequestID, &vendorStatus, &b.RequestPayload,
		&b.ResponseFilePath, &b.Message, &created, &updated)
	if err != nil {
		return b, err
	}
	b.Key.ExclusivePricing = exclusive != 0
	b.Status = model.BatchStatus(status)
	b.VendorStatus = model.VendorStatus(vendorStatus)
	b.CreatedAt = created
	b.UpdatedAt = updated
	return b, nil
}
