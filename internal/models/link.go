package models

import "time"

// Link represents a shortened URL.
type Link struct {
	Code      string // Short code used in the public URL
	TargetURL string

	// PasswordHash is the bcrypt hash of the access password, empty when the link is public.
	PasswordHash string

	CreatedAt time.Time
}

// IsProtected returns true if the link requires a password to resolve.
func (l *Link) IsProtected() bool {
	return l.PasswordHash != ""
}
