// Package submitter posts batches to the batch transport.
package submitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"transportagent/internal/model"
	"transportagent/internal/transport"
)

// Client is the part of the transport client the submitter needs
type Client interface {
	Submit(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Submission is the vendor acknowledgement of a batch
type Submission struct {
	RequestID string
	Status    model.VendorStatus
	// Payload is the JSON request as sent, kept for auditing
	Payload string
}

// Submitter serializes and posts batches
type Submitter struct {
	client   Client
	settings RequestSettings
	log      *logrus.Entry
}

// New creates a Submitter
func New(client Client, settings RequestSettings, log *logrus.Entry) *Submitter {
	return &Submitter{
		client:   client,
		settings: settings,
		log:      log,
	}
}

// Submit posts batch and returns the vendor request id and initial status.
// On a transport failure the returned Submission still carries the payload.
func (s *Submitter) Submit(ctx context.Context, batch model.Batch) (*Submission, error) {
	req, err := BuildRequest(batch, s.settings)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request for batch %d: %w", batch.ID, err)
	}
	sub := &Submission{Payload: string(payload)}

	log := s.log.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"items":    len(batch.Items),
		"bytes":    len(payload),
	})
	log.Info("submitting batch")

	resp, err := s.client.Submit(ctx, req)
	if err != nil {
		return sub, fmt.Errorf("submit batch %d: %w", batch.ID, err)
	}
	if resp.RequestID == "" {
		return sub, fmt.Errorf("submit batch %d: %w", batch.ID, transport.NewUnknownError("no request id in response"))
	}

	sub.RequestID = string(resp.RequestID)
	sub.Status = resp.RequestStatus
	log.WithFields(logrus.Fields{
		"vendor_request_id": sub.RequestID,
		"vendor_status":     sub.Status,
	}).Info("batch accepted")

	return sub, nil
}
