// Package agent holds the two directions of the pipeline: the request agent
// submits new work to the vendor and the poll agent collects finished work.
package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transportagent/internal/transport"
)

// Agent is one pipeline direction
type Agent interface {
	// Name is the action that selects the agent, e.g. "request"
	Name() string

	// Run performs one pass. Batches failing for good are reported through
	// the error; transient failures are only counted as deferred.
	Run(ctx context.Context) (Result, error)
}

// Result summarizes one run
type Result struct {
	// Processed counts batches moved forward (submitted or completed)
	Processed int
	// Deferred counts batches left for a later run
	Deferred int
	// Failed counts batches moved to ERROR
	Failed int
}

// runLogger tags a run with the agent name and a fresh run id
func runLogger(log *logrus.Entry, name string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"agent":  name,
		"run_id": uuid.NewString(),
	})
}

// failureMessage is the text stored on failed batches and items: the
// transport error itself when there is one, without the call-site wrapping
func failureMessage(err error) string {
	var te *transport.TransportError
	if errors.As(err, &te) {
		return te.Error()
	}
	return err.Error()
}
