package transport

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"
)

const (
	defaultTimeout          = 60 * time.Second
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
)

// NewHTTPClient creates the resty client used for the batch transport.
// retryCount is zero in normal operation: failed polls are picked up again by
// the next scheduled run rather than retried in-process.
func NewHTTPClient(baseURL string, timeout time.Duration, retryCount int, log *logrus.Entry) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook(log))

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	switch r.StatusCode() {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	case http.StatusForbidden, http.StatusNotFound:
		return false
	}

	return r.StatusCode() >= 500
}

// retryHook logs retry attempts
func retryHook(log *logrus.Entry) func(*resty.Response, error) {
	return func(r *resty.Response, err error) {
		if err != nil {
			log.WithFields(logrus.Fields{
				"url":     r.Request.URL,
				"attempt": r.Request.Attempt,
				"error":   err.Error(),
			}).Debug("retrying transport request due to error")
			return
		}

		log.WithFields(logrus.Fields{
			"url":         r.Request.URL,
			"attempt":     r.Request.Attempt,
			"status_code": r.StatusCode(),
		}).Debug("retrying transport request due to status code")
	}
}
