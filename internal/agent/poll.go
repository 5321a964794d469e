package agent

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"transportagent/internal/filer"
	"transportagent/internal/model"
	"transportagent/internal/poller"
	"transportagent/internal/reconcile"
	"transportagent/internal/store"
	"transportagent/internal/transport"
)

// PollName is the action served by PollAgent
const PollName = "poll"

// PollStore is the persistence the poll agent needs
type PollStore interface {
	ListBatches(ctx context.Context, status model.BatchStatus, limit int) ([]model.Batch, error)
	UpdateVendorStatus(ctx context.Context, batchID int64, vendorStatus model.VendorStatus) error
	FailBatch(ctx context.Context, batchID int64, f store.Failure) error
	CompleteBatch(ctx context.Context, batchID int64, results []model.Reconciled, responseFile string) error
}

// Poller checks one vendor request
type Poller interface {
	Poll(ctx context.Context, requestID string) (*poller.Outcome, error)
}

// Reconciler classifies the rows of a finished request
type Reconciler interface {
	Reconcile(ctx context.Context, items []model.RequestItem, rows []model.ResponseRow) ([]model.Reconciled, error)
}

// Filer lands vendor data files
type Filer interface {
	Enabled() bool
	Copy(src, programCode string, batchID int64) (string, error)
}

// PollOptions limits the work of one run
type PollOptions struct {
	// PollLimit caps the number of batches polled per run; zero means all
	PollLimit int
}

// PollAgent polls PENDING batches and files the finished ones
type PollAgent struct {
	store      PollStore
	poller     Poller
	reconciler Reconciler
	filer      Filer
	opts       PollOptions
	log        *logrus.Entry
}

// NewPollAgent creates a PollAgent. filer may be nil.
func NewPollAgent(st PollStore, p Poller, r Reconciler, f Filer, opts PollOptions, log *logrus.Entry) *PollAgent {
	return &PollAgent{
		store:      st,
		poller:     p,
		reconciler: r,
		filer:      f,
		opts:       opts,
		log:        log,
	}
}

// Name implements Agent
func (a *PollAgent) Name() string {
	return PollName
}

// Run polls each PENDING batch once, sequentially
func (a *PollAgent) Run(ctx context.Context) (Result, error) {
	log := runLogger(a.log, a.Name())
	var res Result

	batches, err := a.store.ListBatches(ctx, model.BatchPending, a.opts.PollLimit)
	if err != nil {
		return res, err
	}
	log.WithField("batches", len(batches)).Info("polling batches")

	var errs []error
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		outcome, err := a.pollBatch(ctx, b, log.WithFields(logrus.Fields{
			"batch_id":          b.ID,
			"vendor_request_id": b.VendorRequestID,
		}))
		switch outcome {
		case outcomeDone:
			res.Processed++
		case outcomeDeferred:
			res.Deferred++
		case outcomeFailed:
			res.Failed++
			errs = append(errs, err)
		case outcomeAbort:
			return res, errors.Join(append(errs, err)...)
		}
	}

	log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"deferred":  res.Deferred,
		"failed":    res.Failed,
	}).Info("poll run finished")

	return res, errors.Join(errs...)
}

type batchOutcome int

const (
	outcomeDone batchOutcome = iota
	outcomeDeferred
	outcomeFailed
	// outcomeAbort stops the run: the store itself failed
	outcomeAbort
)

func (a *PollAgent) pollBatch(ctx context.Context, b model.Batch, log *logrus.Entry) (batchOutcome, error) {
	out, err := a.poller.Poll(ctx, b.VendorRequestID)
	if err != nil {
		if transport.IsRetryable(err) {
			log.WithError(err).Warn("poll deferred")
			return outcomeDeferred, nil
		}
		log.WithError(err).Error("poll failed")
		return a.fail(ctx, b, store.Failure{
			Message:      failureMessage(err),
			VendorStatus: transport.VendorStatusOf(err),
		}, err)
	}

	if !out.Terminal {
		if out.Status == "" {
			log.Warn("status reply carries no request status, keeping the last known one")
			return outcomeDeferred, nil
		}
		if err := a.store.UpdateVendorStatus(ctx, b.ID, out.Status); err != nil {
			return outcomeAbort, err
		}
		log.WithField("vendor_status", out.Status).Info("request still in progress")
		return outcomeDeferred, nil
	}

	results, err := a.reconciler.Reconcile(ctx, b.Items, out.Rows)
	if err != nil {
		if reconcile.IsMismatch(err) {
			log.WithError(err).Error("response does not match batch")
			return a.fail(ctx, b, store.Failure{Message: err.Error(), VendorStatus: out.Status}, err)
		}
		return outcomeAbort, err
	}

	path := out.DataFilePath
	if a.filer != nil && a.filer.Enabled() && path != "" {
		dst, err := a.filer.Copy(path, b.Key.ProgramCode, b.ID)
		if err != nil {
			if errors.Is(err, filer.ErrUnexpectedName) {
				log.WithError(err).Error("data file cannot be landed")
				return a.fail(ctx, b, store.Failure{Message: err.Error(), VendorStatus: out.Status}, err)
			}
			log.WithError(err).Error("data file copy failed, batch left pending")
			return outcomeDeferred, nil
		}
		path = dst
	}

	if err := a.store.CompleteBatch(ctx, b.ID, results, path); err != nil {
		return outcomeAbort, err
	}
	log.WithField("items", len(results)).Info("batch completed")
	return outcomeDone, nil
}

func (a *PollAgent) fail(ctx context.Context, b model.Batch, f store.Failure, cause error) (batchOutcome, error) {
	if err := a.store.FailBatch(ctx, b.ID, f); err != nil {
		return outcomeAbort, errors.Join(cause, err)
	}
	return outcomeFailed, cause
}
