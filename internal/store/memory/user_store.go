package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	mu sync.RWMutex

	users        map[uuid.UUID]*models.User // user_id -> User
	usersByEmail map[string]uuid.UUID       // email -> user_id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:        make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]uuid.UUID),
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return store.ErrAlreadyExists
	}
	if _, exists := s.usersByEmail[user.Email]; exists {
		return store.ErrAlreadyExists
	}

	clone := *user
	s.users[user.UserID] = &clone
	s.usersByEmail[user.Email] = user.UserID

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, exists := s.usersByEmail[email]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *s.users[userID]
	return &clone, nil
}

// Update replaces an existing user. The email index is kept in sync.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.UserID]
	if !exists {
		return store.ErrUserNotFound
	}

	if existing.Email != user.Email {
		if _, taken := s.usersByEmail[user.Email]; taken {
			return store.ErrAlreadyExists
		}
		delete(s.usersByEmail, existing.Email)
		s.usersByEmail[user.Email] = user.UserID
	}

	clone := *user
	s.users[user.UserID] = &clone
	return nil
}
