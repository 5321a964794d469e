// Package store is the SQLite backing store for request items, batches and the
// vendor return-status table. Every batch-level write runs in one transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when an update targets a batch that does not exist
var ErrNotFound = errors.New("not found")

// Store wraps the database handle
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates it
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; keeps WAL transactions from tripping over each other
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS batch (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    program_code TEXT NOT NULL,
    interface_code TEXT NOT NULL,
    start_date TEXT NOT NULL DEFAULT '',
    end_date TEXT NOT NULL DEFAULT '',
    exclusive_pricing INTEGER NOT NULL DEFAULT 0,
    priority INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    vendor_request_id TEXT NOT NULL DEFAULT '',
    vendor_status TEXT NOT NULL DEFAULT '',
    request_payload TEXT NOT NULL DEFAULT '',
    response_file_path TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS request_item (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    yellow_key TEXT NOT NULL,
    mnemonic TEXT NOT NULL,
    overrides TEXT NOT NULL DEFAULT '',
    optional_elements TEXT NOT NULL DEFAULT '',
    pricing_source TEXT NOT NULL DEFAULT '',
    program_code TEXT NOT NULL,
    interface_code TEXT NOT NULL,
    start_date TEXT NOT NULL DEFAULT '',
    end_date TEXT NOT NULL DEFAULT '',
    register_series INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    batch_id INTEGER REFERENCES batch(id),
    public_msg TEXT NOT NULL DEFAULT '',
    return_value TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS return_status (
    code INTEGER PRIMARY KEY,
    getdata_descr TEXT NOT NULL DEFAULT '',
    gethistory_descr TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_request_item_status ON request_item(status, batch_id);
CREATE INDEX IF NOT EXISTS idx_request_item_batch ON request_item(batch_id);
CREATE INDEX IF NOT EXISTS idx_batch_status ON batch(status, priority, id);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing on success
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// sqlLimit maps a non-positive limit to "no limit"
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
