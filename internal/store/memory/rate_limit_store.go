package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

type rateLimitKey struct {
	identifier string
	endpoint   string
}

// RateLimitStore implements store.RateLimitStore using in-memory storage.
// Counters are per process, so limits are not shared between instances and reset on restart.
type RateLimitStore struct {
	mu       sync.Mutex
	counters map[rateLimitKey]*models.RateLimit
}

// NewRateLimitStore creates a new in-memory rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		counters: make(map[rateLimitKey]*models.RateLimit),
	}
}

// Get retrieves the counter for an identifier and endpoint.
func (s *RateLimitStore) Get(ctx context.Context, identifier, endpoint string) (*models.RateLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, exists := s.counters[rateLimitKey{identifier, endpoint}]
	if !exists {
		return nil, store.ErrRateLimitNotFound
	}

	clone := *counter
	return &clone, nil
}

// Reset creates or replaces a counter.
func (s *RateLimitStore) Reset(ctx context.Context, counter *models.RateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *counter
	s.counters[rateLimitKey{counter.Identifier, counter.Endpoint}] = &clone
	return nil
}

// Increment adds one to an existing counter.
func (s *RateLimitStore) Increment(ctx context.Context, identifier, endpoint string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, exists := s.counters[rateLimitKey{identifier, endpoint}]
	if !exists {
		return 0, store.ErrRateLimitNotFound
	}

	counter.Count++
	counter.UpdatedAt = at
	return counter.Count, nil
}

// DeleteExpired removes counters whose window has ended.
func (s *RateLimitStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, counter := range s.counters {
		if counter.WindowElapsed(now) {
			delete(s.counters, key)
			count++
		}
	}

	return count, nil
}
