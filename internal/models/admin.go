package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin represents an administrative user of the back office.
type Admin struct {
	AdminID      uuid.UUID // UUIDv7
	Email        string    // Lower-cased, unique
	PasswordHash string    // bcrypt hash, never expose

	Active           bool
	TwoFactorEnabled bool // Login requires an emailed one-time code

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}
