package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// ChallengeStore implements store.ChallengeStore using PostgreSQL.
type ChallengeStore struct {
	pool *pgxpool.Pool
}

// NewChallengeStore creates a new PostgreSQL-backed challenge store.
func NewChallengeStore(pool *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{
		pool: pool,
	}
}

// Create stores a new challenge.
func (s *ChallengeStore) Create(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	query := `
		INSERT INTO two_factor_challenges (challenge_id, admin_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		challenge.ChallengeID,
		challenge.AdminID,
		challenge.CodeHash,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a challenge by ID.
func (s *ChallengeStore) Get(ctx context.Context, challengeID uuid.UUID) (*models.TwoFactorChallenge, error) {
	query := `
		SELECT challenge_id, admin_id, code_hash, expires_at, created_at
		FROM two_factor_challenges
		WHERE challenge_id = $1
	`

	var challenge models.TwoFactorChallenge
	err := s.pool.QueryRow(ctx, query, challengeID).Scan(
		&challenge.ChallengeID,
		&challenge.AdminID,
		&challenge.CodeHash,
		&challenge.ExpiresAt,
		&challenge.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", mapPostgresError(err))
	}

	return &challenge, nil
}

// Delete removes a challenge.
func (s *ChallengeStore) Delete(ctx context.Context, challengeID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM two_factor_challenges WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", mapPostgresError(err))
	}

	return nil
}

// DeleteExpired removes expired challenges.
func (s *ChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM two_factor_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", mapPostgresError(err))
	}

	return int(result.RowsAffected()), nil
}
