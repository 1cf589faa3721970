// Package session manages the lifecycle of admin browser sessions.
//
// A session is usable while it is not revoked, its absolute expiry has not passed and it has
// been used within the inactivity window. Once revoked it never becomes usable again.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"github.com/wolfeidau/shortlink/internal/token"
	"go.opentelemetry.io/otel/metric"
)

// Reason explains why a session failed validation.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonMissingToken  Reason = "missing_token"
	ReasonNotFound      Reason = "not_found"
	ReasonRevoked       Reason = "revoked"
	ReasonExpired       Reason = "expired"
	ReasonInactive      Reason = "inactive"
	ReasonAdminDisabled Reason = "admin_disabled"
)

// ClientContext is the optional audit metadata captured when a session is created.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// Validation is the result of ValidateSession. Admin and Session are set only when Valid.
type Validation struct {
	Valid   bool
	Reason  Reason
	Admin   *models.Admin
	Session *models.Session
}

// Manager creates, validates and revokes admin sessions.
type Manager struct {
	sessions store.SessionStore
	admins   store.AdminStore
	cfg      Config
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager. Invalid configuration is an error.
func NewManager(sessions store.SessionStore, admins store.AdminStore, cfg Config, opts ...Option) (*Manager, error) {
	if sessions == nil || admins == nil {
		return nil, errors.New("session and admin stores are required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	m := &Manager{
		sessions: sessions,
		admins:   admins,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// CreateSession starts a session for an admin and returns it with its plaintext token.
// The token is returned only here; the store keeps its hash.
func (m *Manager) CreateSession(ctx context.Context, adminID uuid.UUID, client ClientContext) (*models.Session, string, error) {
	plaintext, err := token.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &models.Session{
		SessionID:      sessionID,
		AdminID:        adminID,
		TokenHash:      token.Hash(plaintext),
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.cfg.MaxLifetime),
		LastActivityAt: now,
		IPAddress:      client.IPAddress,
		UserAgent:      client.UserAgent,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	if err := m.admins.UpdateLastLogin(ctx, adminID, now); err != nil {
		return nil, "", fmt.Errorf("failed to update last login: %w", err)
	}

	telemetry.GetMetrics().SessionsCreatedTotal.Add(ctx, 1)

	log.Info().
		Str("session_id", sessionID.String()).
		Str("admin_id", adminID.String()).
		Str("ip_address", client.IPAddress).
		Msg("Created session")

	return session, plaintext, nil
}

// ValidateSession resolves a plaintext token to its admin.
//
// Expired and inactive sessions are revoked as they are observed. Validation does not bump
// last activity, call ExtendActivity for requests that should keep the session alive.
func (m *Manager) ValidateSession(ctx context.Context, plaintext string) (Validation, error) {
	if plaintext == "" {
		return m.invalid(ctx, ReasonMissingToken), nil
	}

	session, err := m.sessions.GetByTokenHash(ctx, token.Hash(plaintext))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return m.invalid(ctx, ReasonNotFound), nil
		}
		return Validation{}, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsRevoked() {
		return m.invalid(ctx, ReasonRevoked), nil
	}

	now := m.now()

	if session.IsExpired(now) {
		if err := m.revoke(ctx, session.SessionID, now, ReasonExpired); err != nil {
			return Validation{}, err
		}
		return m.invalid(ctx, ReasonExpired), nil
	}

	if session.IsInactive(now, m.cfg.InactivityTimeout) {
		if err := m.revoke(ctx, session.SessionID, now, ReasonInactive); err != nil {
			return Validation{}, err
		}
		return m.invalid(ctx, ReasonInactive), nil
	}

	admin, err := m.admins.Get(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return m.invalid(ctx, ReasonAdminDisabled), nil
		}
		return Validation{}, fmt.Errorf("failed to get admin: %w", err)
	}

	if !admin.Active {
		return m.invalid(ctx, ReasonAdminDisabled), nil
	}

	return Validation{Valid: true, Admin: admin, Session: session}, nil
}

// ExtendActivity bumps last activity of the unrevoked session matching the token.
// Returns store.ErrSessionNotFound if there is no such session.
func (m *Manager) ExtendActivity(ctx context.Context, plaintext string) error {
	session, err := m.lookup(ctx, plaintext)
	if err != nil {
		return err
	}

	if err := m.sessions.UpdateLastActivity(ctx, session.SessionID, m.now()); err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}

	return nil
}

// RevokeSession revokes the session matching the token. Revoking twice is a no-op.
func (m *Manager) RevokeSession(ctx context.Context, plaintext string) error {
	session, err := m.lookup(ctx, plaintext)
	if err != nil {
		return err
	}

	return m.revoke(ctx, session.SessionID, m.now(), "logout")
}

// RevokeSessionByID revokes a session by ID. Revoking twice is a no-op.
func (m *Manager) RevokeSessionByID(ctx context.Context, sessionID uuid.UUID) error {
	return m.revoke(ctx, sessionID, m.now(), "admin_action")
}

// RevokeAllSessions revokes every active session of an admin and returns how many were revoked.
func (m *Manager) RevokeAllSessions(ctx context.Context, adminID uuid.UUID) (int, error) {
	count, err := m.sessions.RevokeByAdmin(ctx, adminID, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	telemetry.GetMetrics().SessionsRevokedTotal.Add(ctx, int64(count))

	log.Info().
		Str("admin_id", adminID.String()).
		Int("count", count).
		Msg("Revoked all sessions for admin")

	return count, nil
}

// GetSession returns a session by ID, including revoked ones.
func (m *Manager) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return m.sessions.Get(ctx, sessionID)
}

// ListSessions returns the admin's unrevoked, unexpired sessions, most recently active first.
func (m *Manager) ListSessions(ctx context.Context, adminID uuid.UUID) ([]*models.Session, error) {
	now := m.now()

	sessions, err := m.sessions.ListActive(ctx, adminID, now, now.Add(-m.cfg.InactivityTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// IsCurrent reports whether session is the one identified by the plaintext token.
func IsCurrent(session *models.Session, plaintext string) bool {
	return plaintext != "" && session.TokenHash == token.Hash(plaintext)
}

// CleanupExpiredSessions deletes sessions past their absolute expiry and revoked sessions older
// than the retention window (cleanup job).
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := m.now()

	count, err := m.sessions.DeleteExpired(ctx, now, now.Add(-m.cfg.RevokedRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	telemetry.GetMetrics().CleanupDeletedTotal.Add(ctx, int64(count),
		metric.WithAttributes(telemetry.AttrResource.String("sessions")))

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}

func (m *Manager) lookup(ctx context.Context, plaintext string) (*models.Session, error) {
	if plaintext == "" {
		return nil, store.ErrSessionNotFound
	}

	session, err := m.sessions.GetByTokenHash(ctx, token.Hash(plaintext))
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (m *Manager) revoke(ctx context.Context, sessionID uuid.UUID, at time.Time, reason Reason) error {
	revoked, err := m.sessions.Revoke(ctx, sessionID, at)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if !revoked {
		return nil
	}

	telemetry.GetMetrics().SessionsRevokedTotal.Add(ctx, 1,
		metric.WithAttributes(telemetry.AttrReason.String(string(reason))))

	log.Info().
		Str("session_id", sessionID.String()).
		Str("reason", string(reason)).
		Msg("Revoked session")

	return nil
}

func (m *Manager) invalid(ctx context.Context, reason Reason) Validation {
	telemetry.GetMetrics().SessionValidationFailure.Add(ctx, 1,
		metric.WithAttributes(telemetry.AttrReason.String(string(reason))))

	log.Debug().Str("reason", string(reason)).Msg("Session validation failed")

	return Validation{Reason: reason}
}
