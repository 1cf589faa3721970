package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one authenticated admin browser session.
// Only the hash of the bearer token is stored, the plaintext lives in the admin's cookie.
type Session struct {
	SessionID uuid.UUID // UUIDv7
	AdminID   uuid.UUID // Who is logged in
	TokenHash string    // Base58 SHA-256 of the bearer token, unique

	CreatedAt      time.Time
	ExpiresAt      time.Time  // Absolute expiry, independent of activity
	LastActivityAt time.Time  // Bumped on each authenticated request
	RevokedAt      *time.Time // Set once, never cleared

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsRevoked returns true if the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired returns true if the absolute lifetime of the session has elapsed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsInactive returns true if the session has been idle for at least window at now.
func (s *Session) IsInactive(now time.Time, window time.Duration) bool {
	return !now.Before(s.LastActivityAt.Add(window))
}
