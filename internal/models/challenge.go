package models

import (
	"time"

	"github.com/google/uuid"
)

// TwoFactorChallenge is a pending second-factor step of an admin login.
type TwoFactorChallenge struct {
	ChallengeID uuid.UUID // UUIDv7, returned to the browser
	AdminID     uuid.UUID
	CodeHash    string // bcrypt hash of the emailed code
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// IsExpired returns true if the challenge can no longer be answered at now.
func (c *TwoFactorChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
