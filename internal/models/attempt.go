package models

import "time"

// VerificationAttempt is the brute-force counter for one (subject, attempt type) pair.
// The same shape backs both the admin and the end-user attempt tables.
type VerificationAttempt struct {
	SubjectID   string // Admin or user ID, namespaced by the backing table
	AttemptType string // "login", "2fa", "password_reset", "email_verification"

	FailedCount   int
	LastAttemptAt time.Time
	LockoutUntil  *time.Time

	UpdatedAt time.Time
}

// IsLocked returns true if a lockout is set and still in the future at now.
func (a *VerificationAttempt) IsLocked(now time.Time) bool {
	return a.LockoutUntil != nil && now.Before(*a.LockoutUntil)
}

// LockoutElapsed returns true if a lockout was set and has since passed.
func (a *VerificationAttempt) LockoutElapsed(now time.Time) bool {
	return a.LockoutUntil != nil && !now.Before(*a.LockoutUntil)
}
