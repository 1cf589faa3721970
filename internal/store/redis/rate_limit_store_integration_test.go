//go:build integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/store"
)

func setupRedisContainer(t *testing.T, ctx context.Context) (*RateLimitStore, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:8-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, ClientConfig{URL: fmt.Sprintf("redis://%s:%s/0", host, port.Port())})
	require.NoError(t, err)

	cleanup := func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}

	return NewRateLimitStore(client, WithKeyPrefix(t.Name()+":")), cleanup
}

func TestIntegration_RateLimitStore(t *testing.T) {
	ctx := context.Background()
	rateLimits, cleanup := setupRedisContainer(t, ctx)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("missing counter", func(t *testing.T) {
		_, err := rateLimits.Get(ctx, "203.0.113.7", "/admin/login")
		require.ErrorIs(t, err, store.ErrRateLimitNotFound)

		_, err = rateLimits.Increment(ctx, "203.0.113.7", "/admin/login", now)
		require.ErrorIs(t, err, store.ErrRateLimitNotFound)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		require.NoError(t, rateLimits.Reset(ctx, &models.RateLimit{
			Identifier: "203.0.113.7",
			Endpoint:   "/admin/login",
			Count:      1,
			ResetAt:    now.Add(time.Minute),
			UpdatedAt:  now,
		}))

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rateLimits.Increment(ctx, "203.0.113.7", "/admin/login", now)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		counter, err := rateLimits.Get(ctx, "203.0.113.7", "/admin/login")
		require.NoError(t, err)
		require.Equal(t, 21, counter.Count)
		require.True(t, now.Add(time.Minute).Equal(counter.ResetAt))
	})

	t.Run("window expires without a sweep", func(t *testing.T) {
		require.NoError(t, rateLimits.Reset(ctx, &models.RateLimit{
			Identifier: "198.51.100.2",
			Endpoint:   "/api/verify-email",
			Count:      1,
			ResetAt:    time.Now().Add(200 * time.Millisecond),
			UpdatedAt:  now,
		}))

		require.Eventually(t, func() bool {
			_, err := rateLimits.Get(ctx, "198.51.100.2", "/api/verify-email")
			return err != nil
		}, 5*time.Second, 50*time.Millisecond)

		count, err := rateLimits.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("limiter over redis", func(t *testing.T) {
		limiter, err := ratelimit.NewLimiter(rateLimits)
		require.NoError(t, err)

		for i := range 3 {
			result, err := limiter.Check(ctx, "192.0.2.1", "/api/links/abc/unlock", 3, time.Minute)
			require.NoError(t, err)
			require.True(t, result.Allowed)
			require.Equal(t, 2-i, result.Remaining)
		}

		result, err := limiter.Check(ctx, "192.0.2.1", "/api/links/abc/unlock", 3, time.Minute)
		require.NoError(t, err)
		require.False(t, result.Allowed)
	})
}
