package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// LinkStore implements store.LinkStore using in-memory storage.
type LinkStore struct {
	mu    sync.RWMutex
	links map[string]*models.Link // code -> Link
}

// NewLinkStore creates a new in-memory link store.
func NewLinkStore() *LinkStore {
	return &LinkStore{
		links: make(map[string]*models.Link),
	}
}

// Create creates a new link in memory.
func (s *LinkStore) Create(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Code]; exists {
		return store.ErrAlreadyExists
	}

	clone := *link
	s.links[link.Code] = &clone
	return nil
}

// GetByCode retrieves a link by short code.
func (s *LinkStore) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[code]
	if !exists {
		return nil, store.ErrLinkNotFound
	}

	clone := *link
	return &clone, nil
}
