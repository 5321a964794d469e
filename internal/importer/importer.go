// Package importer loads request items and the vendor return-status table from
// CSV files into the store.
package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"transportagent/internal/model"
)

// Store is where imported rows go
type Store interface {
	InsertItems(ctx context.Context, items []model.RequestItem) ([]int64, error)
	UpsertReturnStatuses(ctx context.Context, statuses []model.ReturnStatus) (int, error)
}

// Importer reads CSV files from fs
type Importer struct {
	fs    afero.Fs
	store Store
	log   *logrus.Entry
}

// New creates an Importer
func New(fs afero.Fs, store Store, log *logrus.Entry) *Importer {
	return &Importer{fs: fs, store: store, log: log}
}

// ImportItems loads the request item file at path. Nothing is stored unless
// every row is valid.
func (im *Importer) ImportItems(ctx context.Context, path string) (int, error) {
	f, err := im.fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	items, err := ReadItems(f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	ids, err := im.store.InsertItems(ctx, items)
	if err != nil {
		return 0, err
	}

	im.log.WithFields(logrus.Fields{
		"file":  path,
		"items": len(ids),
	}).Info("request items imported")
	return len(ids), nil
}

// ImportReturnStatuses loads the return-status file at path
func (im *Importer) ImportReturnStatuses(ctx context.Context, path string) (int, error) {
	f, err := im.fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	statuses, err := ReadReturnStatuses(f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	n, err := im.store.UpsertReturnStatuses(ctx, statuses)
	if err != nil {
		return 0, err
	}

	im.log.WithFields(logrus.Fields{
		"file":     path,
		"statuses": n,
	}).Info("return statuses imported")
	return n, nil
}
