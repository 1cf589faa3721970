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

// Attempt tables, one per subject namespace.
const (
	AdminAttemptsTable = "admin_verification_attempts"
	UserAttemptsTable  = "verification_attempts"
)

// AttemptStore implements store.AttemptStore using PostgreSQL.
type AttemptStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewAttemptStore creates an attempt store over one of the attempt tables.
func NewAttemptStore(pool *pgxpool.Pool, table string) (*AttemptStore, error) {
	switch table {
	case AdminAttemptsTable, UserAttemptsTable:
	default:
		return nil, fmt.Errorf("unknown attempt table %q", table)
	}

	return &AttemptStore{
		pool:  pool,
		table: table,
	}, nil
}

// Get retrieves the record for a subject and attempt type.
func (s *AttemptStore) Get(ctx context.Context, subjectID, attemptType string) (*models.VerificationAttempt, error) {
	query := `
		SELECT subject_id, attempt_type, failed_count, last_attempt_at, lockout_until, updated_at
		FROM ` + s.table + `
		WHERE subject_id = $1 AND attempt_type = $2
	`

	var attempt models.VerificationAttempt
	err := s.pool.QueryRow(ctx, query, subjectID, attemptType).Scan(
		&attempt.SubjectID,
		&attempt.AttemptType,
		&attempt.FailedCount,
		&attempt.LastAttemptAt,
		&attempt.LockoutUntil,
		&attempt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", mapPostgresError(err))
	}

	return &attempt, nil
}

// Put creates or replaces the record.
func (s *AttemptStore) Put(ctx context.Context, attempt *models.VerificationAttempt) error {
	query := `
		INSERT INTO ` + s.table + ` (
			subject_id, attempt_type, failed_count, last_attempt_at, lockout_until, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_id, attempt_type) DO UPDATE SET
			failed_count = EXCLUDED.failed_count,
			last_attempt_at = EXCLUDED.last_attempt_at,
			lockout_until = EXCLUDED.lockout_until,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		attempt.SubjectID,
		attempt.AttemptType,
		attempt.FailedCount,
		attempt.LastAttemptAt,
		attempt.LockoutUntil,
		attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put attempt: %w", mapPostgresError(err))
	}

	return nil
}

// Delete removes the record for a subject and attempt type.
func (s *AttemptStore) Delete(ctx context.Context, subjectID, attemptType string) error {
	query := `DELETE FROM ` + s.table + ` WHERE subject_id = $1 AND attempt_type = $2`

	if _, err := s.pool.Exec(ctx, query, subjectID, attemptType); err != nil {
		return fmt.Errorf("failed to delete attempt: %w", mapPostgresError(err))
	}

	return nil
}

// DeleteExpired removes records whose lockout has ended.
func (s *AttemptStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM ` + s.table + ` WHERE lockout_until IS NOT NULL AND lockout_until <= $1`

	result, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired attempts: %w", mapPostgresError(err))
	}

	return int(result.RowsAffected()), nil
}
