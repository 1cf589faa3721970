package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

const sessionColumns = `
	session_id, admin_id, token_hash,
	created_at, expires_at, last_activity_at, revoked_at,
	user_agent, ip_address
`

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO admin_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.AdminID,
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastActivityAt,
		session.RevokedAt,
		session.UserAgent,
		session.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("admin_id", session.AdminID.String()).
		Msg("Created session")

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM admin_sessions WHERE session_id = $1`

	return s.getOne(ctx, query, sessionID)
}

// GetByTokenHash retrieves a session by token hash.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM admin_sessions WHERE token_hash = $1`

	return s.getOne(ctx, query, tokenHash)
}

// UpdateLastActivity updates the last_activity_at timestamp for an unrevoked session.
func (s *SessionStore) UpdateLastActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE admin_sessions
		SET last_activity_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("failed to update session last activity: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Revoke marks a session as revoked. The first revocation time is kept.
func (s *SessionStore) Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE admin_sessions
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE session_id = $1
		RETURNING revoked_at = $2
	`

	var revoked bool
	err := s.pool.QueryRow(ctx, query, sessionID, at).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, store.ErrSessionNotFound
		}
		return false, fmt.Errorf("failed to revoke session: %w", mapPostgresError(err))
	}

	return revoked, nil
}

// RevokeByAdmin revokes all unrevoked sessions for an admin (logout everywhere).
func (s *SessionStore) RevokeByAdmin(ctx context.Context, adminID uuid.UUID, at time.Time) (int, error) {
	query := `
		UPDATE admin_sessions
		SET revoked_at = $2
		WHERE admin_id = $1 AND revoked_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, adminID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke admin sessions: %w", mapPostgresError(err))
	}

	return int(result.RowsAffected()), nil
}

// ListActive returns unrevoked, unexpired sessions active after idleSince, most recently active first.
func (s *SessionStore) ListActive(ctx context.Context, adminID uuid.UUID, now, idleSince time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM admin_sessions
		WHERE admin_id = $1 AND revoked_at IS NULL AND expires_at > $2 AND last_activity_at > $3
		ORDER BY last_activity_at DESC
	`

	rows, err := s.pool.Query(ctx, query, adminID, now, idleSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", mapPostgresError(err))
	}

	return sessions, nil
}

// DeleteExpired deletes expired sessions and revoked sessions past their retention (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error) {
	query := `
		DELETE FROM admin_sessions
		WHERE expires_at <= $1 OR revoked_at < $2
	`

	result, err := s.pool.Exec(ctx, query, now, revokedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())
	log.Debug().Int("count", count).Msg("Deleted expired sessions")

	return count, nil
}

func (s *SessionStore) getOne(ctx context.Context, query string, arg any) (*models.Session, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	return session, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.SessionID,
		&session.AdminID,
		&session.TokenHash,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&session.RevokedAt,
		&session.UserAgent,
		&session.IPAddress,
	)
	if err != nil {
		return nil, err
	}

	return &session, nil
}
