package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// Data is lost on restart, use it only in single-process mode or tests.
type SessionStore struct {
	mu sync.RWMutex

	sessions        map[uuid.UUID]*models.Session // session_id -> Session
	sessionsByHash  map[string]uuid.UUID          // token_hash -> session_id
	sessionsByAdmin map[uuid.UUID][]uuid.UUID     // admin_id -> []session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:        make(map[uuid.UUID]*models.Session),
		sessionsByHash:  make(map[string]uuid.UUID),
		sessionsByAdmin: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionID]; exists {
		return store.ErrAlreadyExists
	}
	if _, exists := s.sessionsByHash[session.TokenHash]; exists {
		return store.ErrAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.SessionID] = &clone
	s.sessionsByHash[session.TokenHash] = session.SessionID

	s.sessionsByAdmin[session.AdminID] = append(
		s.sessionsByAdmin[session.AdminID],
		session.SessionID,
	)

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	clone := *session
	return &clone, nil
}

// GetByTokenHash retrieves a session by token hash.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, exists := s.sessionsByHash[tokenHash]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	clone := *s.sessions[sessionID]
	return &clone, nil
}

// UpdateLastActivity updates the last_activity_at timestamp for an unrevoked session.
func (s *SessionStore) UpdateLastActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.IsRevoked() {
		return store.ErrSessionNotFound
	}

	session.LastActivityAt = at
	return nil
}

// Revoke marks a session as revoked.
func (s *SessionStore) Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return false, store.ErrSessionNotFound
	}
	if session.IsRevoked() {
		return false, nil
	}

	revokedAt := at
	session.RevokedAt = &revokedAt
	return true, nil
}

// RevokeByAdmin revokes all unrevoked sessions for an admin (logout everywhere).
func (s *SessionStore) RevokeByAdmin(ctx context.Context, adminID uuid.UUID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sessionID := range s.sessionsByAdmin[adminID] {
		session := s.sessions[sessionID]
		if session.IsRevoked() {
			continue
		}
		revokedAt := at
		session.RevokedAt = &revokedAt
		count++
	}

	return count, nil
}

// ListActive returns unrevoked, unexpired sessions active after idleSince, most recently active first.
func (s *SessionStore) ListActive(ctx context.Context, adminID uuid.UUID, now, idleSince time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.Session
	for _, sessionID := range s.sessionsByAdmin[adminID] {
		session := s.sessions[sessionID]
		if session.IsRevoked() || session.IsExpired(now) || !session.LastActivityAt.After(idleSince) {
			continue
		}
		clone := *session
		sessions = append(sessions, &clone)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})

	return sessions, nil
}

// DeleteExpired deletes expired sessions and revoked sessions past their retention (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now, revokedBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []uuid.UUID
	for id, session := range s.sessions {
		if session.IsExpired(now) ||
			(session.RevokedAt != nil && session.RevokedAt.Before(revokedBefore)) {
			toDelete = append(toDelete, id)
		}
	}

	for _, sessionID := range toDelete {
		session := s.sessions[sessionID]
		s.removeFromAdminIndex(session.AdminID, sessionID)
		delete(s.sessionsByHash, session.TokenHash)
		delete(s.sessions, sessionID)
	}

	return len(toDelete), nil
}

// removeFromAdminIndex removes a session ID from the admin's session list.
func (s *SessionStore) removeFromAdminIndex(adminID, sessionID uuid.UUID) {
	sessionIDs := s.sessionsByAdmin[adminID]
	for i, id := range sessionIDs {
		if id == sessionID {
			s.sessionsByAdmin[adminID] = append(sessionIDs[:i], sessionIDs[i+1:]...)
			break
		}
	}
	// Clean up empty entries
	if len(s.sessionsByAdmin[adminID]) == 0 {
		delete(s.sessionsByAdmin, adminID)
	}
}
