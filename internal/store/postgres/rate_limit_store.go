package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// RateLimitStore implements store.RateLimitStore using PostgreSQL.
// Increments are single statements so concurrent requests never lose a count.
type RateLimitStore struct {
	pool *pgxpool.Pool
}

// NewRateLimitStore creates a new PostgreSQL-backed rate limit store.
func NewRateLimitStore(pool *pgxpool.Pool) *RateLimitStore {
	return &RateLimitStore{
		pool: pool,
	}
}

// Get retrieves the counter for an identifier and endpoint.
func (s *RateLimitStore) Get(ctx context.Context, identifier, endpoint string) (*models.RateLimit, error) {
	query := `
		SELECT identifier, endpoint, count, reset_at, updated_at
		FROM rate_limits
		WHERE identifier = $1 AND endpoint = $2
	`

	var counter models.RateLimit
	err := s.pool.QueryRow(ctx, query, identifier, endpoint).Scan(
		&counter.Identifier,
		&counter.Endpoint,
		&counter.Count,
		&counter.ResetAt,
		&counter.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRateLimitNotFound
		}
		return nil, fmt.Errorf("failed to get rate limit: %w", mapPostgresError(err))
	}

	return &counter, nil
}

// Reset creates or replaces a counter.
func (s *RateLimitStore) Reset(ctx context.Context, counter *models.RateLimit) error {
	query := `
		INSERT INTO rate_limits (identifier, endpoint, count, reset_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier, endpoint) DO UPDATE SET
			count = EXCLUDED.count,
			reset_at = EXCLUDED.reset_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		counter.Identifier,
		counter.Endpoint,
		counter.Count,
		counter.ResetAt,
		counter.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", mapPostgresError(err))
	}

	return nil
}

// Increment adds one to an existing counter.
func (s *RateLimitStore) Increment(ctx context.Context, identifier, endpoint string, at time.Time) (int, error) {
	query := `
		UPDATE rate_limits
		SET count = count + 1, updated_at = $3
		WHERE identifier = $1 AND endpoint = $2
		RETURNING count
	`

	var count int
	err := s.pool.QueryRow(ctx, query, identifier, endpoint, at).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrRateLimitNotFound
		}
		return 0, fmt.Errorf("failed to increment rate limit: %w", mapPostgresError(err))
	}

	return count, nil
}

// DeleteExpired removes counters whose window has ended.
func (s *RateLimitStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM rate_limits WHERE reset_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rate limits: %w", mapPostgresError(err))
	}

	return int(result.RowsAffected()), nil
}
