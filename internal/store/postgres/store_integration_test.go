//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := Open(ctx, &Config{
		Pool:        PoolConfig{ConnString: connString},
		AutoMigrate: true, // Enable migrations for tests
	})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestIntegration_Stores(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	stores := NewStores(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	admin := &models.Admin{
		AdminID:      uuid.Must(uuid.NewV7()),
		Email:        "ops@example.com",
		PasswordHash: "$2a$04$notarealhash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(ctx, pool))
	})

	t.Run("admins", func(t *testing.T) {
		require.NoError(t, stores.Admins.Create(ctx, admin))

		err := stores.Admins.Create(ctx, &models.Admin{
			AdminID:   uuid.Must(uuid.NewV7()),
			Email:     admin.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		got, err := stores.Admins.GetByEmail(ctx, "ops@example.com")
		require.NoError(t, err)
		require.Equal(t, admin.AdminID, got.AdminID)
		require.Nil(t, got.LastLoginAt)

		require.NoError(t, stores.Admins.UpdateLastLogin(ctx, admin.AdminID, now))
		got, err = stores.Admins.Get(ctx, admin.AdminID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		require.True(t, now.Equal(*got.LastLoginAt))

		_, err = stores.Admins.Get(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrAdminNotFound)
	})

	t.Run("sessions", func(t *testing.T) {
		newSession := func(hash string, lastActivity time.Time) *models.Session {
			return &models.Session{
				SessionID:      uuid.Must(uuid.NewV7()),
				AdminID:        admin.AdminID,
				TokenHash:      hash,
				CreatedAt:      now,
				ExpiresAt:      now.Add(12 * time.Hour),
				LastActivityAt: lastActivity,
				IPAddress:      "203.0.113.7",
			}
		}

		older := newSession("hash-older", now)
		newer := newSession("hash-newer", now.Add(time.Minute))
		require.NoError(t, stores.Sessions.Create(ctx, older))
		require.NoError(t, stores.Sessions.Create(ctx, newer))
		require.ErrorIs(t, stores.Sessions.Create(ctx, newSession("hash-older", now)), store.ErrAlreadyExists)

		got, err := stores.Sessions.GetByTokenHash(ctx, "hash-older")
		require.NoError(t, err)
		require.Equal(t, older.SessionID, got.SessionID)
		require.Equal(t, "203.0.113.7", got.IPAddress)

		sessions, err := stores.Sessions.ListActive(ctx, admin.AdminID, now, now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		require.Equal(t, newer.SessionID, sessions[0].SessionID)

		// The older session's last activity is exactly on the idle cutoff.
		sessions, err = stores.Sessions.ListActive(ctx, admin.AdminID, now, now)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.Equal(t, newer.SessionID, sessions[0].SessionID)

		revoked, err := stores.Sessions.Revoke(ctx, older.SessionID, now)
		require.NoError(t, err)
		require.True(t, revoked)

		revoked, err = stores.Sessions.Revoke(ctx, older.SessionID, now.Add(time.Minute))
		require.NoError(t, err)
		require.False(t, revoked)

		require.ErrorIs(t, stores.Sessions.UpdateLastActivity(ctx, older.SessionID, now), store.ErrSessionNotFound)
		require.NoError(t, stores.Sessions.UpdateLastActivity(ctx, newer.SessionID, now.Add(2*time.Minute)))

		count, err := stores.Sessions.RevokeByAdmin(ctx, admin.AdminID, now)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		count, err = stores.Sessions.DeleteExpired(ctx, now, now.Add(time.Second))
		require.NoError(t, err)
		require.Equal(t, 2, count)

		_, err = stores.Sessions.Get(ctx, older.SessionID)
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("attempt tables are separate", func(t *testing.T) {
		lockoutUntil := now.Add(15 * time.Minute)
		attempt := &models.VerificationAttempt{
			SubjectID:     "ops@example.com",
			AttemptType:   "login",
			FailedCount:   5,
			LastAttemptAt: now,
			LockoutUntil:  &lockoutUntil,
			UpdatedAt:     now,
		}
		require.NoError(t, stores.AdminAttempts.Put(ctx, attempt))

		_, err := stores.UserAttempts.Get(ctx, "ops@example.com", "login")
		require.ErrorIs(t, err, store.ErrAttemptNotFound)

		attempt.FailedCount = 0
		attempt.LockoutUntil = nil
		require.NoError(t, stores.AdminAttempts.Put(ctx, attempt))

		got, err := stores.AdminAttempts.Get(ctx, "ops@example.com", "login")
		require.NoError(t, err)
		require.Zero(t, got.FailedCount)
		require.Nil(t, got.LockoutUntil)

		require.NoError(t, stores.AdminAttempts.Delete(ctx, "ops@example.com", "login"))
		require.NoError(t, stores.AdminAttempts.Delete(ctx, "ops@example.com", "login"))

		ended := now.Add(-time.Minute)
		require.NoError(t, stores.UserAttempts.Put(ctx, &models.VerificationAttempt{
			SubjectID: "reader@example.com", AttemptType: "email_verification",
			FailedCount: 5, LastAttemptAt: now, LockoutUntil: &ended, UpdatedAt: now,
		}))
		count, err := stores.UserAttempts.DeleteExpired(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		_, err = NewAttemptStore(pool, "admins")
		require.Error(t, err)
	})

	t.Run("rate limit increments are atomic", func(t *testing.T) {
		require.NoError(t, stores.RateLimits.Reset(ctx, &models.RateLimit{
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
				_, err := stores.RateLimits.Increment(ctx, "203.0.113.7", "/admin/login", now)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		counter, err := stores.RateLimits.Get(ctx, "203.0.113.7", "/admin/login")
		require.NoError(t, err)
		require.Equal(t, 21, counter.Count)

		_, err = stores.RateLimits.Increment(ctx, "198.51.100.2", "/admin/login", now)
		require.ErrorIs(t, err, store.ErrRateLimitNotFound)

		count, err := stores.RateLimits.DeleteExpired(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("challenges", func(t *testing.T) {
		challenge := &models.TwoFactorChallenge{
			ChallengeID: uuid.Must(uuid.NewV7()),
			AdminID:     admin.AdminID,
			CodeHash:    "$2a$04$notarealhash",
			ExpiresAt:   now.Add(10 * time.Minute),
			CreatedAt:   now,
		}
		require.NoError(t, stores.Challenges.Create(ctx, challenge))

		got, err := stores.Challenges.Get(ctx, challenge.ChallengeID)
		require.NoError(t, err)
		require.Equal(t, admin.AdminID, got.AdminID)

		count, err := stores.Challenges.DeleteExpired(ctx, now.Add(10*time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, count)

		_, err = stores.Challenges.Get(ctx, challenge.ChallengeID)
		require.ErrorIs(t, err, store.ErrChallengeNotFound)
	})

	t.Run("users and links", func(t *testing.T) {
		user := &models.User{
			UserID:    uuid.Must(uuid.NewV7()),
			Email:     "reader@example.com",
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, stores.Users.Create(ctx, user))

		verifiedAt := now
		user.EmailVerifiedAt = &verifiedAt
		require.NoError(t, stores.Users.Update(ctx, user))

		got, err := stores.Users.GetByEmail(ctx, "reader@example.com")
		require.NoError(t, err)
		require.True(t, got.IsVerified())

		require.NoError(t, stores.Links.Create(ctx, &models.Link{Code: "abc", TargetURL: "https://example.com", CreatedAt: now}))
		link, err := stores.Links.GetByCode(ctx, "abc")
		require.NoError(t, err)
		require.False(t, link.IsProtected())

		_, err = stores.Links.GetByCode(ctx, "missing")
		require.ErrorIs(t, err, store.ErrLinkNotFound)
	})
}
