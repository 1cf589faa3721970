package store

import (
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for attempt store operations
var (
	ErrAttemptNotFound = errors.New("verification attempt not found")
)

// AttemptStore defines the interface for brute-force counter storage.
// Records are unique per (subject ID, attempt type).
type AttemptStore interface {
	// Get retrieves the record for a subject and attempt type.
	// Returns ErrAttemptNotFound if no record exists.
	Get(ctx context.Context, subjectID, attemptType string) (*models.VerificationAttempt, error)

	// Put creates or replaces the record for the attempt's subject and type.
	Put(ctx context.Context, attempt *models.VerificationAttempt) error

	// Delete removes the record for a subject and attempt type. Deleting a missing record is not an error.
	Delete(ctx context.Context, subjectID, attemptType string) error

	// DeleteExpired removes records whose lockout ended before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
