package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for admin store operations
var (
	ErrAdminNotFound = errors.New("admin not found")
)

// AdminStore defines the interface for admin account storage operations.
type AdminStore interface {
	// Create creates a new admin.
	// Returns ErrAlreadyExists if the ID or email is already in use.
	Create(ctx context.Context, admin *models.Admin) error

	// Get retrieves an admin by ID.
	// Returns ErrAdminNotFound if the admin doesn't exist.
	Get(ctx context.Context, adminID uuid.UUID) (*models.Admin, error)

	// GetByEmail retrieves an admin by lower-cased email address.
	// Returns ErrAdminNotFound if the admin doesn't exist.
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)

	// UpdateLastLogin stamps the admin's last_login_at.
	// Returns ErrAdminNotFound if the admin doesn't exist.
	UpdateLastLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error
}
