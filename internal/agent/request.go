package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"transportagent/internal/grouper"
	"transportagent/internal/model"
	"transportagent/internal/store"
	"transportagent/internal/submitter"
	"transportagent/internal/transport"
)

// RequestName is the action served by RequestAgent
const RequestName = "request"

// RequestStore is the persistence the request agent needs
type RequestStore interface {
	ListUngroupedItems(ctx context.Context, limit int) ([]model.RequestItem, error)
	CreateBatch(ctx context.Context, batch *model.Batch) error
	ListBatches(ctx context.Context, status model.BatchStatus, limit int) ([]model.Batch, error)
	MarkSubmitted(ctx context.Context, batchID int64, vendorRequestID string, vendorStatus model.VendorStatus, payload string) error
	FailBatch(ctx context.Context, batchID int64, f store.Failure) error
}

// Submitter posts one batch
type Submitter interface {
	Submit(ctx context.Context, batch model.Batch) (*submitter.Submission, error)
}

// RequestOptions limits the work of one run
type RequestOptions struct {
	// RequestLimit caps the number of new items grouped per run; zero means all
	RequestLimit int
	MaxBatchSize int
}

// RequestAgent groups new items into batches and submits them
type RequestAgent struct {
	store     RequestStore
	submitter Submitter
	opts      RequestOptions
	log       *logrus.Entry
}

// NewRequestAgent creates a RequestAgent
func NewRequestAgent(st RequestStore, sub Submitter, opts RequestOptions, log *logrus.Entry) *RequestAgent {
	return &RequestAgent{
		store:     st,
		submitter: sub,
		opts:      opts,
		log:       log,
	}
}

// Name implements Agent
func (a *RequestAgent) Name() string {
	return RequestName
}

// Run groups ungrouped NEW items into batches, then submits every NEW batch in
// priority order. Batches left NEW by an earlier transient failure are
// submitted again.
func (a *RequestAgent) Run(ctx context.Context) (Result, error) {
	log := runLogger(a.log, a.Name())
	var res Result

	created, err := a.groupNewItems(ctx, log)
	if err != nil {
		return res, err
	}

	batches, err := a.store.ListBatches(ctx, model.BatchNew, 0)
	if err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{
		"created_batches": created,
		"new_batches":     len(batches),
	}).Info("submitting batches")

	var errs []error
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		blog := log.WithFields(logrus.Fields{
			"batch_id": b.ID,
			"priority": b.Priority,
			"program":  b.Key.ProgramCode,
		})
		blog.WithField("tags", b.Tags()).Debug("submitting batch")

		sub, err := a.submitter.Submit(ctx, b)
		if err != nil {
			if transport.IsRetryable(err) {
				blog.WithError(err).Warn("submission deferred")
				res.Deferred++
				continue
			}

			blog.WithError(err).Error("submission failed")
			failure := store.Failure{Message: failureMessage(err)}
			if sub != nil {
				failure.Payload = sub.Payload
			}
			if ferr := a.store.FailBatch(ctx, b.ID, failure); ferr != nil {
				return res, errors.Join(append(errs, err, ferr)...)
			}
			res.Failed++
			errs = append(errs, err)
			continue
		}

		if err := a.store.MarkSubmitted(ctx, b.ID, sub.RequestID, sub.Status, sub.Payload); err != nil {
			// the vendor has the request but we lost track of it
			return res, errors.Join(append(errs, fmt.Errorf("batch %d accepted as %s: %w", b.ID, sub.RequestID, err))...)
		}
		res.Processed++
	}

	log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"deferred":  res.Deferred,
		"failed":    res.Failed,
	}).Info("request run finished")

	return res, errors.Join(errs...)
}

func (a *RequestAgent) groupNewItems(ctx context.Context, log *logrus.Entry) (int, error) {
	items, err := a.store.ListUngroupedItems(ctx, a.opts.RequestLimit)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	batches := grouper.Group(items, grouper.Options{MaxBatchSize: a.opts.MaxBatchSize})
	for i := range batches {
		if err := a.store.CreateBatch(ctx, &batches[i]); err != nil {
			return i, err
		}
	}

	log.WithFields(logrus.Fields{
		"items":   len(items),
		"batches": len(batches),
	}).Info("items grouped")
	return len(batches), nil
}
