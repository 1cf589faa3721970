package models

import "time"

// RateLimit is the fixed-window request counter for one (identifier, endpoint) pair.
type RateLimit struct {
	Identifier string // Caller IP or similar
	Endpoint   string // Request path
	Count      int
	ResetAt    time.Time // End of the current window
	UpdatedAt  time.Time
}

// WindowElapsed returns true if the counter's window has ended at now.
func (r *RateLimit) WindowElapsed(now time.Time) bool {
	return !now.Before(r.ResetAt)
}
