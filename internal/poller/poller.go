// Package poller checks outstanding vendor requests and downloads finished ones.
package poller

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"transportagent/internal/model"
	"transportagent/internal/transport"
)

// Client is the part of the transport client the poller needs
type Client interface {
	CheckStatus(ctx context.Context, requestID string) (*transport.Response, error)
	FetchResponse(ctx context.Context, requestID string) (*transport.Response, error)
}

// Outcome is the result of one poll
type Outcome struct {
	Status model.VendorStatus
	// Terminal is false while the vendor is still working; the caller defers
	Terminal     bool
	Rows         []model.ResponseRow
	DataFilePath string
}

// Poller polls one request id at a time
type Poller struct {
	client Client
	log    *logrus.Entry
}

// New creates a Poller
func New(client Client, log *logrus.Entry) *Poller {
	return &Poller{client: client, log: log}
}

// Poll checks the status of requestID and fetches the rows once the vendor
// reports success. Vendor error states surface as transport errors.
func (p *Poller) Poll(ctx context.Context, requestID string) (*Outcome, error) {
	if requestID == "" {
		return nil, fmt.Errorf("poll: empty request id")
	}
	log := p.log.WithField("vendor_request_id", requestID)

	status, err := p.client.CheckStatus(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("check status of %s: %w", requestID, err)
	}

	out := &Outcome{Status: status.RequestStatus}
	if !status.RequestStatus.IsTerminal() {
		log.WithField("vendor_status", status.RequestStatus).Debug("request not finished")
		return out, nil
	}
	out.Terminal = true

	// the client reports vendor error states as errors, so any terminal
	// status reaching this point is a success
	resp, err := p.client.FetchResponse(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("fetch response of %s: %w", requestID, err)
	}

	out.Rows = resp.Rows()
	out.DataFilePath = resp.DataFilePath
	if out.DataFilePath == "" {
		out.DataFilePath = status.DataFilePath
	}

	log.WithFields(logrus.Fields{
		"vendor_status": out.Status,
		"rows":          len(out.Rows),
	}).Info("response downloaded")

	return out, nil
}
