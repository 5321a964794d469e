package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Endpoint represents the batch transport endpoints we call
type Endpoint string

const (
	// EndpointSubmit is POST request_data
	EndpointSubmit Endpoint = "request_data"
	// EndpointStatus is GET check_status/{id}
	EndpointStatus Endpoint = "check_status"
	// EndpointResponse is GET response/{id}
	EndpointResponse Endpoint = "response"
)

// Config holds the per-endpoint request rates in requests per second.
// A zero or negative rate disables limiting for that endpoint.
type Config struct {
	SubmitPerSecond   float64
	StatusPerSecond   float64
	ResponsePerSecond float64
	Burst             int
}

// Limiter manages rate limits for the transport endpoints
type Limiter struct {
	limiters map[Endpoint]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter from cfg
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	l := &Limiter{
		limiters: make(map[Endpoint]*rate.Limiter),
	}
	l.set(EndpointSubmit, cfg.SubmitPerSecond, burst)
	l.set(EndpointStatus, cfg.StatusPerSecond, burst)
	l.set(EndpointResponse, cfg.ResponsePerSecond, burst)
	return l
}

// Unlimited returns a limiter that never blocks
func Unlimited() *Limiter {
	return New(Config{})
}

func (l *Limiter) set(endpoint Endpoint, perSecond float64, burst int) {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	l.mu.Lock()
	l.limiters[endpoint] = rate.NewLimiter(limit, burst)
	l.mu.Unlock()
}

// Wait blocks until the limiter permits a call to endpoint.
// It returns an error if the context is canceled before the call can proceed.
func (l *Limiter) Wait(ctx context.Context, endpoint Endpoint) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[endpoint]
	l.mu.RUnlock()

	if !exists {
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether a call to endpoint may happen now
func (l *Limiter) Allow(endpoint Endpoint) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[endpoint]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
