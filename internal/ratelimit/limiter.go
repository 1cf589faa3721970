// Package ratelimit implements a fixed-window request limiter keyed by (identifier, endpoint).
//
// Counters live in a store.RateLimitStore so every server instance sees the same window. If the
// store fails the limiter allows the request.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrInvalidLimit is returned when a limit or window is not positive.
	ErrInvalidLimit = errors.New("limit and window must be positive")
	// ErrMissingKey is returned when the identifier or endpoint is empty.
	ErrMissingKey = errors.New("identifier and endpoint are required")
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time // End of the current window
}

// RetryAfter returns the whole seconds until the window resets at now, at least one.
func (r Result) RetryAfter(now time.Time) int {
	wait := r.ResetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter applies fixed-window limits on top of a RateLimitStore.
type Limiter struct {
	counters store.RateLimitStore
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter backed by counters.
func NewLimiter(counters store.RateLimitStore, opts ...Option) (*Limiter, error) {
	if counters == nil {
		return nil, errors.New("rate limit store is required")
	}

	l := &Limiter{
		counters: counters,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Check counts one request for (identifier, endpoint) and reports whether it is within limit
// for the current window.
//
// Only caller misuse is returned as an error. Store failures are logged and the request is
// allowed.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (Result, error) {
	if identifier == "" || endpoint == "" {
		return Result{}, ErrMissingKey
	}
	if limit <= 0 || window <= 0 {
		return Result{}, ErrInvalidLimit
	}

	result, err := l.check(ctx, identifier, endpoint, limit, window)
	if err != nil {
		now := l.now()

		telemetry.GetMetrics().RateLimitFailOpenTotal.Add(ctx, 1,
			metric.WithAttributes(telemetry.AttrEndpoint.String(endpoint)))

		log.Warn().
			Err(err).
			Str("identifier", identifier).
			Str("endpoint", endpoint).
			Msg("Rate limit store unavailable, allowing request")

		return Result{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	if !result.Allowed {
		telemetry.GetMetrics().RateLimitDeniedTotal.Add(ctx, 1,
			metric.WithAttributes(telemetry.AttrEndpoint.String(endpoint)))

		log.Debug().
			Str("identifier", identifier).
			Str("endpoint", endpoint).
			Time("reset_at", result.ResetAt).
			Msg("Rate limit exceeded")
	}

	return result, nil
}

func (l *Limiter) check(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (Result, error) {
	now := l.now()

	counter, err := l.counters.Get(ctx, identifier, endpoint)
	if err != nil && !errors.Is(err, store.ErrRateLimitNotFound) {
		return Result{}, fmt.Errorf("failed to get counter: %w", err)
	}

	if counter == nil || counter.WindowElapsed(now) {
		return l.startWindow(ctx, identifier, endpoint, limit, window, now)
	}

	if counter.Count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: counter.ResetAt}, nil
	}

	count, err := l.counters.Increment(ctx, identifier, endpoint, now)
	if err != nil {
		// The counter vanished between the read and the write, e.g. it expired in Redis.
		if errors.Is(err, store.ErrRateLimitNotFound) {
			return l.startWindow(ctx, identifier, endpoint, limit, window, now)
		}
		return Result{}, fmt.Errorf("failed to increment counter: %w", err)
	}

	return Result{Allowed: true, Remaining: max(limit-count, 0), ResetAt: counter.ResetAt}, nil
}

func (l *Limiter) startWindow(ctx context.Context, identifier, endpoint string, limit int, window time.Duration, now time.Time) (Result, error) {
	counter := &models.RateLimit{
		Identifier: identifier,
		Endpoint:   endpoint,
		Count:      1,
		ResetAt:    now.Add(window),
		UpdatedAt:  now,
	}

	if err := l.counters.Reset(ctx, counter); err != nil {
		return Result{}, fmt.Errorf("failed to reset counter: %w", err)
	}

	return Result{Allowed: true, Remaining: limit - 1, ResetAt: counter.ResetAt}, nil
}

// CleanupExpired deletes counters whose window has ended (cleanup job).
func (l *Limiter) CleanupExpired(ctx context.Context) (int, error) {
	count, err := l.counters.DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired counters: %w", err)
	}

	telemetry.GetMetrics().CleanupDeletedTotal.Add(ctx, int64(count),
		metric.WithAttributes(telemetry.AttrResource.String("rate_limits")))

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired rate limit counters")
	}

	return count, nil
}
