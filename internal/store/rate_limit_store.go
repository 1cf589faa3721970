package store

import (
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for rate limit store operations
var (
	ErrRateLimitNotFound = errors.New("rate limit counter not found")
)

// RateLimitStore defines the interface for fixed-window counter storage.
// Counters are unique per (identifier, endpoint).
type RateLimitStore interface {
	// Get retrieves the counter for an identifier and endpoint.
	// Returns ErrRateLimitNotFound if no counter exists.
	Get(ctx context.Context, identifier, endpoint string) (*models.RateLimit, error)

	// Reset creates or replaces the counter, starting a new window.
	Reset(ctx context.Context, counter *models.RateLimit) error

	// Increment atomically adds one to an existing counter and returns the new count.
	// Returns ErrRateLimitNotFound if no counter exists.
	Increment(ctx context.Context, identifier, endpoint string, at time.Time) (int, error)

	// DeleteExpired removes counters whose window ended before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
