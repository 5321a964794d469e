package transport

import (
	"errors"
	"fmt"
	"net/http"

	"transportagent/internal/model"
)

// ErrorKind represents the category of a batch transport failure
type ErrorKind string

const (
	// KindForbidden indicates the vendor rejected our credentials (HTTP 403)
	KindForbidden ErrorKind = "forbidden"
	// KindNotFound indicates the vendor no longer knows the request id (HTTP 404)
	KindNotFound ErrorKind = "not_found"
	// KindUnknown indicates the vendor answered with an empty response
	KindUnknown ErrorKind = "unknown"
	// KindErrorStatus indicates the vendor reported an error request status
	KindErrorStatus ErrorKind = "error_status"
	// KindRateLimit indicates the request was throttled (HTTP 429)
	KindRateLimit ErrorKind = "rate_limit"
	// KindServer indicates a server error (HTTP 5xx)
	KindServer ErrorKind = "server"
	// KindClient indicates a client error (HTTP 4xx other than 403, 404 and 429)
	KindClient ErrorKind = "client"
	// KindNetwork indicates a network-level error (connection refused, DNS, etc.)
	KindNetwork ErrorKind = "network"
	// KindTimeout indicates the request timed out
	KindTimeout ErrorKind = "timeout"
	// KindParse indicates the response body could not be decoded
	KindParse ErrorKind = "parse"
)

// TransportError represents a structured error from a batch transport call
type TransportError struct {
	Kind       ErrorKind
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
	// VendorStatus is the request status the vendor reported, if any
	VendorStatus model.VendorStatus
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewForbiddenError creates the non-retryable auth rejection error
func NewForbiddenError(message string) *TransportError {
	return &TransportError{
		Kind:       KindForbidden,
		StatusCode: http.StatusForbidden,
		Message:    "forbidden: " + message,
	}
}

// NewNotFoundError creates the error for a request id the vendor has lost
func NewNotFoundError(requestID string) *TransportError {
	return &TransportError{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("request id %s not found", requestID),
	}
}

// NewUnknownError creates the error for an empty vendor response
func NewUnknownError(message string) *TransportError {
	return &TransportError{
		Kind:    KindUnknown,
		Message: message,
	}
}

// NewErrorStatusError creates the error for a vendor error request status
func NewErrorStatusError(status model.VendorStatus, details string) *TransportError {
	msg := fmt.Sprintf("vendor reported %s", status)
	if details != "" {
		msg += ": " + details
	}
	return &TransportError{
		Kind:         KindErrorStatus,
		Message:      msg,
		VendorStatus: status,
	}
}

// NewErrorResponseError creates the error for a reply flagged is_error while
// its request status is not an error state
func NewErrorResponseError(status model.VendorStatus, details string) *TransportError {
	msg := "vendor reported an error response"
	if details != "" {
		msg += ": " + details
	}
	return &TransportError{
		Kind:         KindErrorStatus,
		Message:      msg,
		VendorStatus: status,
	}
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *TransportError {
	return &TransportError{
		Kind:      KindNetwork,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *TransportError {
	return &TransportError{
		Kind:      KindTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// NewParseError creates an error for an undecodable response body
func NewParseError(cause error) *TransportError {
	return &TransportError{
		Kind:    KindParse,
		Message: "could not decode response",
		Cause:   cause,
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate TransportError
func ClassifyHTTPError(statusCode int, message string) *TransportError {
	switch {
	case statusCode == http.StatusForbidden:
		return NewForbiddenError(message)
	case statusCode == http.StatusNotFound:
		return &TransportError{
			Kind:       KindNotFound,
			StatusCode: statusCode,
			Message:    message,
		}
	case statusCode == http.StatusTooManyRequests:
		return &TransportError{
			Kind:       KindRateLimit,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    "rate limit exceeded",
		}
	case statusCode == http.StatusRequestTimeout:
		return &TransportError{
			Kind:       KindTimeout,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    "request timed out",
		}
	case statusCode >= 500:
		return &TransportError{
			Kind:       KindServer,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    "server returned an error",
		}
	case statusCode >= 400:
		return &TransportError{
			Kind:       KindClient,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("client error: %s", message),
		}
	default:
		return &TransportError{
			Kind:       KindUnknown,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// KindOf returns the kind of a transport error anywhere in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// VendorStatusOf returns the vendor request status carried by err, or ""
func VendorStatusOf(err error) model.VendorStatus {
	var te *TransportError
	if errors.As(err, &te) {
		return te.VendorStatus
	}
	return ""
}

// IsRetryable reports whether err is a transport error the scheduler may retry
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable
}

// IsForbidden reports whether err is an auth rejection
func IsForbidden(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindForbidden
}

// IsNotFound reports whether err means the vendor lost the request id
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

// IsUnknown reports whether err is an empty vendor response
func IsUnknown(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindUnknown
}

// IsErrorStatus reports whether err is a vendor error request status
func IsErrorStatus(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindErrorStatus
}
