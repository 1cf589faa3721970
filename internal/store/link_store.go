package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/shortlink/internal/models"
)

// Sentinel errors for link store operations
var (
	ErrLinkNotFound = errors.New("link not found")
)

// LinkStore defines the read side of link storage used by the unlock endpoint.
type LinkStore interface {
	// Create creates a new link.
	// Returns ErrAlreadyExists if the code is already in use.
	Create(ctx context.Context, link *models.Link) error

	// GetByCode retrieves a link by its short code.
	// Returns ErrLinkNotFound if the link doesn't exist.
	GetByCode(ctx context.Context, code string) (*models.Link, error)
}
