package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an end user account of the link shortener.
type User struct {
	UserID uuid.UUID // UUIDv7
	Email  string    // Lower-cased, unique
	Active bool

	EmailVerifiedAt *time.Time

	// Pending email verification code, bcrypt hashed.
	VerificationCodeHash  string
	VerificationExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsVerified returns true if the user's email address has been verified.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}
