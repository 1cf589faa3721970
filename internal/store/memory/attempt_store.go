package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

type attemptKey struct {
	subjectID   string
	attemptType string
}

// AttemptStore implements store.AttemptStore using in-memory storage.
// Create one instance per subject namespace (admins, users).
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey]*models.VerificationAttempt
}

// NewAttemptStore creates a new in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[attemptKey]*models.VerificationAttempt),
	}
}

// Get retrieves the attempt record for a subject and type.
func (s *AttemptStore) Get(ctx context.Context, subjectID, attemptType string) (*models.VerificationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, exists := s.attempts[attemptKey{subjectID, attemptType}]
	if !exists {
		return nil, store.ErrAttemptNotFound
	}

	clone := *attempt
	return &clone, nil
}

// Put creates or replaces the attempt record.
func (s *AttemptStore) Put(ctx context.Context, attempt *models.VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *attempt
	s.attempts[attemptKey{attempt.SubjectID, attempt.AttemptType}] = &clone
	return nil
}

// Delete removes the attempt record.
func (s *AttemptStore) Delete(ctx context.Context, subjectID, attemptType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, attemptKey{subjectID, attemptType})
	return nil
}

// DeleteExpired removes records whose lockout has ended.
func (s *AttemptStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, attempt := range s.attempts {
		if attempt.LockoutElapsed(now) {
			delete(s.attempts, key)
			count++
		}
	}

	return count, nil
}
