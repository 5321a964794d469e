// Package transport is the client for the vendor's asynchronous batch
// transport API: submit a request, check its status, download the response.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"transportagent/internal/ratelimit"
)

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	// Compress gzips the request_data body
	Compress bool
}

// Client talks to the batch transport endpoints
type Client struct {
	http     *resty.Client
	limiter  *ratelimit.Limiter
	log      *logrus.Entry
	compress bool
}

// NewClient creates a transport client. A nil limiter disables rate limiting.
func NewClient(opts Options, limiter *ratelimit.Limiter, log *logrus.Entry) *Client {
	return &Client{
		http:     NewHTTPClient(opts.BaseURL, opts.Timeout, opts.RetryCount, log),
		limiter:  limiter,
		log:      log,
		compress: opts.Compress,
	}
}

// Close releases the underlying HTTP client
func (c *Client) Close() error {
	return c.http.Close()
}

// Submit posts a request and returns the vendor acknowledgement
func (c *Client) Submit(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx, ratelimit.EndpointSubmit); err != nil {
		return nil, NewTimeoutError(err)
	}

	r := c.http.R().
		SetContext(ctx)

	if c.compress {
		body, err := gzipJSON(req)
		if err != nil {
			return nil, err
		}
		r.SetHeader("Content-Type", "application/json").
			SetHeader("Content-Encoding", "gzip").
			SetBody(body)
	} else {
		r.SetBody(req)
	}

	c.log.WithFields(logrus.Fields{
		"program_code":   req.ProgramCode,
		"interface_code": req.InterfaceCode,
		"items":          len(req.RequestDataItems),
		"fields":         len(req.RequestFields),
	}).Info("submitting request to transport")

	resp, err := r.Post("/request_data")
	return c.handle(resp, err, "")
}

// CheckStatus asks the vendor for the status of requestID
func (c *Client) CheckStatus(ctx context.Context, requestID string) (*Response, error) {
	return c.get(ctx, ratelimit.EndpointStatus, "/check_status/{requestID}", requestID)
}

// FetchResponse downloads the response payload of requestID
func (c *Client) FetchResponse(ctx context.Context, requestID string) (*Response, error) {
	return c.get(ctx, ratelimit.EndpointResponse, "/response/{requestID}", requestID)
}

func (c *Client) get(ctx context.Context, endpoint ratelimit.Endpoint, path, requestID string) (*Response, error) {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return nil, NewTimeoutError(err)
	}

	c.log.WithFields(logrus.Fields{
		"endpoint":   string(endpoint),
		"request_id": requestID,
	}).Debug("querying transport")

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("requestID", requestID).
		Get(path)

	return c.handle(resp, err, requestID)
}

// handle maps the raw outcome of a call onto the transport error taxonomy
func (c *Client) handle(resp *resty.Response, err error, requestID string) (*Response, error) {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewTimeoutError(err)
		}
		return nil, NewNetworkError(err)
	}

	body := strings.TrimSpace(resp.String())

	if !resp.IsSuccess() {
		if resp.StatusCode() == http.StatusNotFound && requestID != "" {
			return nil, NewNotFoundError(requestID)
		}
		return nil, ClassifyHTTPError(resp.StatusCode(), vendorMessage(body))
	}

	if body == "" || body == "null" {
		return nil, NewUnknownError("response is empty")
	}

	out := &Response{}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return nil, NewParseError(err)
	}

	if out.empty() {
		return nil, NewUnknownError("response is empty")
	}

	if out.RequestStatus.IsError() {
		return nil, NewErrorStatusError(out.RequestStatus, out.errorText())
	}
	if out.IsError {
		return nil, NewErrorResponseError(out.RequestStatus, out.errorText())
	}

	return out, nil
}
