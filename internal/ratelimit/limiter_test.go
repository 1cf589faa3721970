package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store/memory"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(t *testing.T) (*Limiter, *testClock, *memory.RateLimitStore) {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	counters := memory.NewRateLimitStore()

	limiter, err := NewLimiter(counters, WithNow(clock.Now))
	require.NoError(t, err)

	return limiter, clock, counters
}

// Scenario: limit 3 in a 10 second window.
func TestCheck_FixedWindow(t *testing.T) {
	limiter, clock, _ := newTestLimiter(t)
	ctx := context.Background()

	windowEnd := clock.now.Add(10 * time.Second)

	for _, expected := range []int{2, 1, 0} {
		result, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 10*time.Second)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, expected, result.Remaining)
		require.Equal(t, windowEnd, result.ResetAt)
		clock.Advance(time.Second)
	}

	result, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 10*time.Second)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Zero(t, result.Remaining)
	require.Equal(t, windowEnd, result.ResetAt)
	require.Equal(t, 7, result.RetryAfter(clock.now))
}

func TestCheck_WindowElapsedStartsFresh(t *testing.T) {
	limiter, clock, counters := newTestLimiter(t)
	ctx := context.Background()

	for range 4 {
		_, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 10*time.Second)
		require.NoError(t, err)
	}

	clock.Advance(10 * time.Second)

	result, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 10*time.Second)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, 2, result.Remaining)
	require.Equal(t, clock.now.Add(10*time.Second), result.ResetAt)

	counter, err := counters.Get(ctx, "203.0.113.7", "/admin/login")
	require.NoError(t, err)
	require.Equal(t, 1, counter.Count)
}

func TestCheck_KeysArePartitioned(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, "203.0.113.7", "/admin/login", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Same caller, different endpoint
	result, err = limiter.Check(ctx, "203.0.113.7", "/api/verify-email", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	// Same endpoint, different caller
	result, err = limiter.Check(ctx, "198.51.100.2", "/admin/login", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestCheck_CallerMisuse(t *testing.T) {
	limiter, _, counters := newTestLimiter(t)
	ctx := context.Background()

	_, err := limiter.Check(ctx, "", "/admin/login", 3, time.Minute)
	require.ErrorIs(t, err, ErrMissingKey)

	_, err = limiter.Check(ctx, "203.0.113.7", "/admin/login", 0, time.Minute)
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 0)
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = counters.Get(ctx, "203.0.113.7", "/admin/login")
	require.Error(t, err)
}

type brokenRateLimitStore struct{}

func (brokenRateLimitStore) Get(ctx context.Context, identifier, endpoint string) (*models.RateLimit, error) {
	return nil, errors.New("connection refused")
}

func (brokenRateLimitStore) Reset(ctx context.Context, counter *models.RateLimit) error {
	return errors.New("connection refused")
}

func (brokenRateLimitStore) Increment(ctx context.Context, identifier, endpoint string, at time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func (brokenRateLimitStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func TestCheck_FailsOpen(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	limiter, err := NewLimiter(brokenRateLimitStore{}, WithNow(clock.Now))
	require.NoError(t, err)

	for range 5 {
		result, err := limiter.Check(context.Background(), "203.0.113.7", "/admin/login", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, 2, result.Remaining)
	}

	_, err = limiter.CleanupExpired(context.Background())
	require.Error(t, err)
}

func TestCleanupExpired(t *testing.T) {
	limiter, clock, counters := newTestLimiter(t)
	ctx := context.Background()

	_, err := limiter.Check(ctx, "203.0.113.7", "/admin/login", 3, 10*time.Second)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "203.0.113.7", "/api/verify-email", 3, time.Minute)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	count, err := limiter.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = counters.Get(ctx, "203.0.113.7", "/api/verify-email")
	require.NoError(t, err)
}
