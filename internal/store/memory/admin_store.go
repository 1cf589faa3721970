package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// AdminStore implements store.AdminStore using in-memory storage.
type AdminStore struct {
	mu sync.RWMutex

	admins        map[uuid.UUID]*models.Admin // admin_id -> Admin
	adminsByEmail map[string]uuid.UUID        // email -> admin_id
}

// NewAdminStore creates a new in-memory admin store.
func NewAdminStore() *AdminStore {
	return &AdminStore{
		admins:        make(map[uuid.UUID]*models.Admin),
		adminsByEmail: make(map[string]uuid.UUID),
	}
}

// Create creates a new admin in memory.
func (s *AdminStore) Create(ctx context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[admin.AdminID]; exists {
		return store.ErrAlreadyExists
	}
	if _, exists := s.adminsByEmail[admin.Email]; exists {
		return store.ErrAlreadyExists
	}

	clone := *admin
	s.admins[admin.AdminID] = &clone
	s.adminsByEmail[admin.Email] = admin.AdminID

	return nil
}

// Get retrieves an admin by ID.
func (s *AdminStore) Get(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, exists := s.admins[adminID]
	if !exists {
		return nil, store.ErrAdminNotFound
	}

	clone := *admin
	return &clone, nil
}

// GetByEmail retrieves an admin by email.
func (s *AdminStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adminID, exists := s.adminsByEmail[email]
	if !exists {
		return nil, store.ErrAdminNotFound
	}

	clone := *s.admins[adminID]
	return &clone, nil
}

// UpdateLastLogin stamps last_login_at.
func (s *AdminStore) UpdateLastLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, exists := s.admins[adminID]
	if !exists {
		return store.ErrAdminNotFound
	}

	lastLogin := at
	admin.LastLoginAt = &lastLogin
	admin.UpdatedAt = at
	return nil
}
