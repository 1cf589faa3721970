package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for session store operations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyExists   = errors.New("record already exists")
)

// SessionStore defines the interface for admin session storage operations.
// Implementations never interpret expiry themselves, callers pass the time they consider "now".
type SessionStore interface {
	// Create stores a new session.
	// Returns ErrAlreadyExists if the session ID or token hash is already present.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID, including revoked and expired sessions.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// GetByTokenHash retrieves a session by the hash of its bearer token.
	// Returns ErrSessionNotFound if no session matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// UpdateLastActivity sets last_activity_at for a session that is not revoked.
	// Returns ErrSessionNotFound if no unrevoked session matches.
	UpdateLastActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) error

	// Revoke sets revoked_at on a session if it is not already revoked.
	// Returns false without error when the session was already revoked.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)

	// RevokeByAdmin revokes every unrevoked session owned by an admin and returns the count.
	RevokeByAdmin(ctx context.Context, adminID uuid.UUID, at time.Time) (int, error)

	// ListActive returns the admin's unrevoked sessions whose absolute expiry is after now and
	// whose last activity is after idleSince, most recently active first.
	ListActive(ctx context.Context, adminID uuid.UUID, now, idleSince time.Time) ([]*models.Session, error)

	// DeleteExpired deletes sessions whose absolute expiry is not after now, and revoked
	// sessions revoked before revokedBefore. Returns the number of deleted sessions.
	DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error)
}
