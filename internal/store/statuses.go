package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"transportagent/internal/model"
)

// UpsertReturnStatuses inserts or replaces return-status descriptions
func (s *Store) UpsertReturnStatuses(ctx context.Context, statuses []model.ReturnStatus) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO return_status (code, getdata_descr, gethistory_descr)
VALUES (?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
    getdata_descr=excluded.getdata_descr,
    gethistory_descr=excluded.gethistory_descr
`)
		if err != nil {
			return fmt.Errorf("prepare return status upsert: %w", err)
		}
		defer stmt.Close()

		for _, st := range statuses {
			if _, err := stmt.ExecContext(ctx, st.Code, st.GetDataDescr, st.GetHistoryDescr); err != nil {
				return fmt.Errorf("upsert return status %d: %w", st.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(statuses), nil
}

// ReturnStatus looks up one code. The bool is false when the code is unknown.
func (s *Store) ReturnStatus(ctx context.Context, code int) (model.ReturnStatus, bool, error) {
	var st model.ReturnStatus
	err := s.db.QueryRowContext(ctx, `
SELECT code, getdata_descr, gethistory_descr FROM return_status WHERE code = ?
`, code).Scan(&st.Code, &st.GetDataDescr, &st.GetHistoryDescr)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("get return status %d: %w", code, err)
	}
	return st, true, nil
}

// ReturnStatuses returns the whole table ordered by code
func (s *Store) ReturnStatuses(ctx context.Context) ([]model.ReturnStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT code, getdata_descr, gethistory_descr FROM return_status ORDER BY code
`)
	if err != nil {
		return nil, fmt.Errorf("list return statuses: %w", err)
	}
	defer rows.Close()

	var out []model.ReturnStatus
	for rows.Next() {
		var st model.ReturnStatus
		if err := rows.Scan(&st.Code, &st.GetDataDescr, &st.GetHistoryDescr); err != nil {
			return nil, fmt.Errorf("scan return status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
