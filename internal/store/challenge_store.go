package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for challenge store operations
var (
	ErrChallengeNotFound = errors.New("two-factor challenge not found")
)

// ChallengeStore defines the interface for pending two-factor login challenges.
type ChallengeStore interface {
	// Create stores a new challenge.
	Create(ctx context.Context, challenge *models.TwoFactorChallenge) error

	// Get retrieves a challenge by ID.
	// Returns ErrChallengeNotFound if the challenge doesn't exist.
	Get(ctx context.Context, challengeID uuid.UUID) (*models.TwoFactorChallenge, error)

	// Delete removes a challenge. Deleting a missing challenge is not an error.
	Delete(ctx context.Context, challengeID uuid.UUID) error

	// DeleteExpired removes challenges that expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
