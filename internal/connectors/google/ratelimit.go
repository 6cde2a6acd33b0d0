package google

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultDriveRateLimit stays below Drive's 10 requests/sec/user quota.
var DefaultDriveRateLimit = RateLimitConfig{RequestsPerSecond: 8.0, BurstSize: 10}

// defaultBackoff applies when a 429 carries no Retry-After.
const defaultBackoff = 60 * time.Second

// RateLimiter provides rate limiting for Google API requests.
// It uses a token bucket algorithm with optional backoff for 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter with the Drive defaults.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(DefaultDriveRateLimit)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period after a 429 response.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backoff := time.Duration(retryAfterSeconds) * time.Second
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	r.retryAt = time.Now().Add(backoff)
}

// Allow checks if a request can be made immediately without blocking.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}

// Do waits for the limiter, runs fn and records any rate-limit reply.
// The error is mapped through WrapError.
func (r *RateLimiter) Do(ctx context.Context, fn func() error) error {
	if err := r.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	if IsRateLimited(err) {
		r.RecordRateLimitError(RetryAfter(err))
	}
	return WrapError(err)
}
