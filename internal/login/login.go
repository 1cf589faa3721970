// Package login implements the admin authentication surface: password login with an optional
// emailed second factor, logout, and management of the admin's own sessions.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/lockout"
	"github.com/wolfeidau/shortlink/internal/mail"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/session"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"github.com/wolfeidau/shortlink/internal/token"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultChallengeTTL is how long an emailed login code stays valid.
	DefaultChallengeTTL = 10 * time.Minute

	msgInvalidCredentials = "invalid credentials"
	msgInvalidCode        = "invalid or expired code"
	msgLocked             = "too many failed attempts, try again later"
)

// Verifier checks and hashes secrets.
type Verifier interface {
	Verify(ctx context.Context, storedHash, candidate string) bool
	Hash(secret string) (string, error)
}

// Handler serves the admin login and session endpoints.
type Handler struct {
	sessions   *session.Manager
	admins     store.AdminStore
	challenges store.ChallengeStore
	lockouts   *lockout.Tracker
	verifier   Verifier
	mailer     mail.Mailer

	challengeTTL time.Duration
	now          func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithChallengeTTL overrides how long second factor codes stay valid.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.challengeTTL = ttl
	}
}

// NewHandler creates a login handler. lockouts must be the admin tracker.
func NewHandler(
	sessions *session.Manager,
	admins store.AdminStore,
	challenges store.ChallengeStore,
	lockouts *lockout.Tracker,
	verifier Verifier,
	mailer mail.Mailer,
	opts ...Option,
) (*Handler, error) {
	if sessions == nil || admins == nil || challenges == nil || lockouts == nil || verifier == nil || mailer == nil {
		return nil, errors.New("sessions, admins, challenges, lockouts, verifier and mailer are required")
	}

	h := &Handler{
		sessions:     sessions,
		admins:       admins,
		challenges:   challenges,
		lockouts:     lockouts,
		verifier:     verifier,
		mailer:       mailer,
		challengeTTL: DefaultChallengeTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.challengeTTL <= 0 {
		return nil, fmt.Errorf("challenge TTL must be positive, got %s", h.challengeTTL)
	}

	return h, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AdminID           string     `json:"admin_id,omitempty"`
	Email             string     `json:"email,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	TwoFactorRequired bool       `json:"two_factor_required,omitempty"`
	ChallengeID       string     `json:"challenge_id,omitempty"`
}

type failedResponse struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

type lockedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

// Login handles POST /admin/login.
//
// Lockouts are keyed by the normalized email so unknown addresses lock the same way known
// ones do. The lockout is consulted before the password comparison.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		httpx.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	status, err := h.lockouts.IsLocked(ctx, email, lockout.AttemptLogin)
	if err != nil {
		h.internalError(w, err, "Failed to check login lockout")
		return
	}
	if status.Locked {
		h.respondLocked(w, status)
		return
	}

	admin, err := h.admins.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrAdminNotFound) {
		h.internalError(w, err, "Failed to get admin")
		return
	}

	storedHash := ""
	if admin != nil && admin.Active {
		storedHash = admin.PasswordHash
	}

	if !h.verifier.Verify(ctx, storedHash, req.Password) {
		status, err := h.lockouts.RecordFailedAttempt(ctx, email, lockout.AttemptLogin)
		if err != nil {
			h.internalError(w, err, "Failed to record failed login")
			return
		}

		log.Info().
			Str("email", email).
			Int("remaining_attempts", status.RemainingAttempts).
			Msg("Admin login failed")

		if status.Locked {
			h.respondLocked(w, status)
			return
		}
		httpx.RespondJSON(w, http.StatusUnauthorized, failedResponse{
			Error:             msgInvalidCredentials,
			RemainingAttempts: status.RemainingAttempts,
		})
		return
	}

	if err := h.lockouts.RecordSuccess(ctx, email, lockout.AttemptLogin); err != nil {
		h.internalError(w, err, "Failed to clear login attempts")
		return
	}

	if admin.TwoFactorEnabled {
		challenge, err := h.startChallenge(ctx, admin)
		if err != nil {
			h.internalError(w, err, "Failed to start two-factor challenge")
			return
		}

		httpx.RespondJSON(w, http.StatusAccepted, loginResponse{
			TwoFactorRequired: true,
			ChallengeID:       challenge.ChallengeID.String(),
		})
		return
	}

	h.startSession(w, r, admin)
}

type twoFactorRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// VerifyTwoFactor handles POST /admin/login/2fa.
func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req twoFactorRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil || !token.ValidCode(req.Code) {
		httpx.RespondError(w, http.StatusBadRequest, "challenge_id and a 6 digit code are required")
		return
	}

	challenge, err := h.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrChallengeNotFound) {
			httpx.RespondError(w, http.StatusUnauthorized, msgInvalidCode)
			return
		}
		h.internalError(w, err, "Failed to get two-factor challenge")
		return
	}

	if challenge.IsExpired(h.now()) {
		if err := h.challenges.Delete(ctx, challengeID); err != nil {
			h.internalError(w, err, "Failed to delete expired challenge")
			return
		}
		httpx.RespondError(w, http.StatusUnauthorized, msgInvalidCode)
		return
	}

	subjectID := challenge.AdminID.String()

	status, err := h.lockouts.IsLocked(ctx, subjectID, lockout.AttemptTwoFactor)
	if err != nil {
		h.internalError(w, err, "Failed to check two-factor lockout")
		return
	}
	if status.Locked {
		h.respondLocked(w, status)
		return
	}

	if !h.verifier.Verify(ctx, challenge.CodeHash, req.Code) {
		status, err := h.lockouts.RecordFailedAttempt(ctx, subjectID, lockout.AttemptTwoFactor)
		if err != nil {
			h.internalError(w, err, "Failed to record failed two-factor attempt")
			return
		}
		if status.Locked {
			// A locked out challenge is burnt, the admin has to log in again.
			if err := h.challenges.Delete(ctx, challengeID); err != nil {
				h.internalError(w, err, "Failed to delete challenge")
				return
			}
			h.respondLocked(w, status)
			return
		}
		httpx.RespondJSON(w, http.StatusUnauthorized, failedResponse{
			Error:             msgInvalidCode,
			RemainingAttempts: status.RemainingAttempts,
		})
		return
	}

	if err := h.challenges.Delete(ctx, challengeID); err != nil {
		h.internalError(w, err, "Failed to delete challenge")
		return
	}

	if err := h.lockouts.RecordSuccess(ctx, subjectID, lockout.AttemptTwoFactor); err != nil {
		h.internalError(w, err, "Failed to clear two-factor attempts")
		return
	}

	admin, err := h.admins.Get(ctx, challenge.AdminID)
	if err != nil && !errors.Is(err, store.ErrAdminNotFound) {
		h.internalError(w, err, "Failed to get admin")
		return
	}
	if admin == nil || !admin.Active {
		httpx.RespondError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	h.startSession(w, r, admin)
}

// Logout handles POST /admin/logout. It succeeds whether or not the cookie names a live session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	plaintext := session.TokenFromRequest(r)
	if plaintext != "" {
		err := h.sessions.RevokeSession(r.Context(), plaintext)
		if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			h.internalError(w, err, "Failed to revoke session")
			return
		}
	}

	session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startChallenge(ctx context.Context, admin *models.Admin) (*models.TwoFactorChallenge, error) {
	code, err := token.GenerateCode()
	if err != nil {
		return nil, err
	}

	codeHash, err := h.verifier.Hash(code)
	if err != nil {
		return nil, err
	}

	challengeID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge ID: %w", err)
	}

	now := h.now()
	challenge := &models.TwoFactorChallenge{
		ChallengeID: challengeID,
		AdminID:     admin.AdminID,
		CodeHash:    codeHash,
		ExpiresAt:   now.Add(h.challengeTTL),
		CreatedAt:   now,
	}

	if err := h.challenges.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	err = h.mailer.Send(ctx, mail.Message{
		To:      admin.Email,
		Subject: "Your admin login code",
		Body: fmt.Sprintf("Your login code is %s. It expires in %d minutes.",
			code, int(h.challengeTTL.Minutes())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send login code: %w", err)
	}

	log.Info().
		Str("admin_id", admin.AdminID.String()).
		Str("challenge_id", challengeID.String()).
		Msg("Two-factor challenge issued")

	return challenge, nil
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, admin *models.Admin) {
	sess, plaintext, err := h.sessions.CreateSession(r.Context(), admin.AdminID, session.ClientContext{
		IPAddress: httpx.ClientIPFromContext(r.Context()),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.internalError(w, err, "Failed to create session")
		return
	}

	h.sessions.SetCookie(w, plaintext)

	httpx.RespondJSON(w, http.StatusOK, loginResponse{
		AdminID:   admin.AdminID.String(),
		Email:     admin.Email,
		ExpiresAt: &sess.ExpiresAt,
	})
}

func (h *Handler) respondLocked(w http.ResponseWriter, status lockout.Status) {
	retryAfter := status.RemainingSeconds(h.now())
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httpx.RespondJSON(w, http.StatusTooManyRequests, lockedResponse{
		Error:      msgLocked,
		RetryAfter: retryAfter,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	httpx.RespondError(w, http.StatusInternalServerError, "internal error")
}

// CleanupExpiredChallenges deletes second factor challenges that can no longer be answered (cleanup job).
func CleanupExpiredChallenges(ctx context.Context, challenges store.ChallengeStore, now time.Time) (int, error) {
	count, err := challenges.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}

	telemetry.GetMetrics().CleanupDeletedTotal.Add(ctx, int64(count),
		metric.WithAttributes(telemetry.AttrResource.String("two_factor_challenges")))

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired two-factor challenges")
	}

	return count, nil
}
