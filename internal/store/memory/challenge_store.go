package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// ChallengeStore implements store.ChallengeStore using in-memory storage.
type ChallengeStore struct {
	mu         sync.RWMutex
	challenges map[uuid.UUID]*models.TwoFactorChallenge
}

// NewChallengeStore creates a new in-memory challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		challenges: make(map[uuid.UUID]*models.TwoFactorChallenge),
	}
}

// Create stores a new challenge.
func (s *ChallengeStore) Create(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[challenge.ChallengeID]; exists {
		return store.ErrAlreadyExists
	}

	clone := *challenge
	s.challenges[challenge.ChallengeID] = &clone
	return nil
}

// Get retrieves a challenge by ID.
func (s *ChallengeStore) Get(ctx context.Context, challengeID uuid.UUID) (*models.TwoFactorChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, exists := s.challenges[challengeID]
	if !exists {
		return nil, store.ErrChallengeNotFound
	}

	clone := *challenge
	return &clone, nil
}

// Delete removes a challenge.
func (s *ChallengeStore) Delete(ctx context.Context, challengeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, challengeID)
	return nil
}

// DeleteExpired removes expired challenges.
func (s *ChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, challenge := range s.challenges {
		if challenge.IsExpired(now) {
			delete(s.challenges, id)
			count++
		}
	}

	return count, nil
}
