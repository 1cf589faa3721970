package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserStore defines the interface for end-user account storage operations.
type UserStore interface {
	// Create creates a new user.
	// Returns ErrAlreadyExists if the ID or email is already in use.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by lower-cased email address.
	// Returns ErrUserNotFound if the user doesn't exist.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update replaces the mutable fields of an existing user.
	// Returns ErrUserNotFound if the user doesn't exist.
	Update(ctx context.Context, user *models.User) error
}
