// Package verify confirms end-user email addresses with emailed one-time codes.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/lockout"
	"github.com/wolfeidau/shortlink/internal/mail"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/store"
	"github.com/wolfeidau/shortlink/internal/token"
)

const (
	// DefaultCodeTTL is how long an emailed verification code stays valid.
	DefaultCodeTTL = 15 * time.Minute

	// Verification endpoints allow this many requests per client IP per window.
	RateLimit  = 5
	RateWindow = time.Minute

	msgInvalidCode = "invalid or expired code"
)

// Verifier checks and hashes secrets.
type Verifier interface {
	Verify(ctx context.Context, storedHash, candidate string) bool
	Hash(secret string) (string, error)
}

// Handler serves the email verification endpoints.
type Handler struct {
	users    store.UserStore
	lockouts *lockout.Tracker
	verifier Verifier
	mailer   mail.Mailer

	codeTTL time.Duration
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a verification handler. lockouts must be the end-user tracker.
func NewHandler(users store.UserStore, lockouts *lockout.Tracker, verifier Verifier, mailer mail.Mailer, opts ...Option) (*Handler, error) {
	if users == nil || lockouts == nil || verifier == nil || mailer == nil {
		return nil, errors.New("users, lockouts, verifier and mailer are required")
	}

	h := &Handler{
		users:    users,
		lockouts: lockouts,
		verifier: verifier,
		mailer:   mailer,
		codeTTL:  DefaultCodeTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

type sendRequest struct {
	Email string `json:"email"`
}

// SendCode handles POST /api/verify-email/send. It always answers 202 so the response does
// not reveal whether the address belongs to an account.
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" {
		httpx.RespondError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.internalError(w, err, "Failed to get user")
		return
	}

	// A code is generated and hashed for every address so response time does not depend on
	// whether an account exists.
	code, codeHash, err := h.newCode()
	if err != nil {
		h.internalError(w, err, "Failed to generate verification code")
		return
	}

	if user != nil && user.Active && !user.IsVerified() {
		if err := h.issueCode(ctx, user, code, codeHash); err != nil {
			h.internalError(w, err, "Failed to issue verification code")
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type failedResponse struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

type lockedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

// VerifyEmail handles POST /api/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" || !token.ValidCode(req.Code) {
		httpx.RespondError(w, http.StatusBadRequest, "email and a 6 digit code are required")
		return
	}

	status, err := h.lockouts.IsLocked(ctx, email, lockout.AttemptEmailVerification)
	if err != nil {
		h.internalError(w, err, "Failed to check verification lockout")
		return
	}
	if status.Locked {
		h.respondLocked(w, status)
		return
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		h.internalError(w, err, "Failed to get user")
		return
	}

	now := h.now()

	storedHash := ""
	if user != nil && user.Active && !user.IsVerified() &&
		user.VerificationExpiresAt != nil && now.Before(*user.VerificationExpiresAt) {
		storedHash = user.VerificationCodeHash
	}

	if !h.verifier.Verify(ctx, storedHash, req.Code) {
		status, err := h.lockouts.RecordFailedAttempt(ctx, email, lockout.AttemptEmailVerification)
		if err != nil {
			h.internalError(w, err, "Failed to record failed verification")
			return
		}
		if status.Locked {
			h.respondLocked(w, status)
			return
		}
		httpx.RespondJSON(w, http.StatusUnauthorized, failedResponse{
			Error:             msgInvalidCode,
			RemainingAttempts: status.RemainingAttempts,
		})
		return
	}

	verifiedAt := now
	user.EmailVerifiedAt = &verifiedAt
	user.VerificationCodeHash = ""
	user.VerificationExpiresAt = nil
	user.UpdatedAt = now

	if err := h.users.Update(ctx, user); err != nil {
		h.internalError(w, err, "Failed to mark email verified")
		return
	}

	if err := h.lockouts.RecordSuccess(ctx, email, lockout.AttemptEmailVerification); err != nil {
		h.internalError(w, err, "Failed to clear verification attempts")
		return
	}

	log.Info().Str("user_id", user.UserID.String()).Msg("Email verified")

	httpx.RespondJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *Handler) newCode() (string, string, error) {
	code, err := token.GenerateCode()
	if err != nil {
		return "", "", err
	}

	codeHash, err := h.verifier.Hash(code)
	if err != nil {
		return "", "", err
	}

	return code, codeHash, nil
}

func (h *Handler) issueCode(ctx context.Context, user *models.User, code, codeHash string) error {
	now := h.now()
	expiresAt := now.Add(h.codeTTL)
	user.VerificationCodeHash = codeHash
	user.VerificationExpiresAt = &expiresAt
	user.UpdatedAt = now

	if err := h.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	err := h.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
			code, int(h.codeTTL.Minutes())),
	})
	if err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	log.Info().Str("user_id", user.UserID.String()).Msg("Verification code issued")

	return nil
}

func (h *Handler) respondLocked(w http.ResponseWriter, status lockout.Status) {
	retryAfter := status.RemainingSeconds(h.now())
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httpx.RespondJSON(w, http.StatusTooManyRequests, lockedResponse{
		Error:      "too many failed attempts, try again later",
		RetryAfter: retryAfter,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	httpx.RespondError(w, http.StatusInternalServerError, "internal error")
}

// Routes registers the verification endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux, limiter *ratelimit.Limiter) {
	limited := ratelimit.Middleware(limiter, RateLimit, RateWindow)

	mux.Handle("POST /api/verify-email/send", limited(http.HandlerFunc(h.SendCode)))
	mux.Handle("POST /api/verify-email", limited(http.HandlerFunc(h.VerifyEmail)))
}
