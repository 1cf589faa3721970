package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// DefaultKeyPrefix namespaces rate limit hashes.
const DefaultKeyPrefix = "shortlink:rate_limit:"

const (
	fieldCount     = "count"
	fieldResetAt   = "reset_at"
	fieldUpdatedAt = "updated_at"
)

// incrementScript bumps the counter only when the hash still exists, so an expired window
// is never resurrected without a reset_at.
var incrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return redis.call("HINCRBY", KEYS[1], "count", 1)
`)

// RateLimitStore implements store.RateLimitStore on Redis.
// Each (identifier, endpoint) pair is one hash that expires at the end of its window.
type RateLimitStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RateLimitOption configures a RateLimitStore.
type RateLimitOption func(*RateLimitStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RateLimitOption {
	return func(s *RateLimitStore) {
		s.keyPrefix = prefix
	}
}

// NewRateLimitStore creates a Redis backed rate limit store.
func NewRateLimitStore(client redis.UniversalClient, opts ...RateLimitOption) *RateLimitStore {
	s := &RateLimitStore{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RateLimitStore) key(identifier, endpoint string) string {
	return s.keyPrefix + identifier + ":" + endpoint
}

// Get retrieves the counter for an identifier and endpoint.
func (s *RateLimitStore) Get(ctx context.Context, identifier, endpoint string) (*models.RateLimit, error) {
	values, err := s.client.HGetAll(ctx, s.key(identifier, endpoint)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}
	if len(values) == 0 {
		return nil, store.ErrRateLimitNotFound
	}

	count, err := strconv.Atoi(values[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit count: %w", err)
	}
	resetAt, err := parseUnixMilli(values[fieldResetAt])
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit reset_at: %w", err)
	}
	updatedAt, err := parseUnixMilli(values[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit updated_at: %w", err)
	}

	return &models.RateLimit{
		Identifier: identifier,
		Endpoint:   endpoint,
		Count:      count,
		ResetAt:    resetAt,
		UpdatedAt:  updatedAt,
	}, nil
}

// Reset replaces the counter and sets the hash to expire at the end of the window.
func (s *RateLimitStore) Reset(ctx context.Context, counter *models.RateLimit) error {
	key := s.key(counter.Identifier, counter.Endpoint)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCount, counter.Count,
			fieldResetAt, counter.ResetAt.UnixMilli(),
			fieldUpdatedAt, counter.UpdatedAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, counter.ResetAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}

	return nil
}

// Increment atomically adds one to an existing counter.
func (s *RateLimitStore) Increment(ctx context.Context, identifier, endpoint string, at time.Time) (int, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{s.key(identifier, endpoint)}, at.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count < 0 {
		return 0, store.ErrRateLimitNotFound
	}

	return count, nil
}

// DeleteExpired is a no-op, Redis expires each window's hash at its reset time.
func (s *RateLimitStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func parseUnixMilli(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
