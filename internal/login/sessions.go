package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/session"
	"github.com/wolfeidau/shortlink/internal/store"
)

// Login endpoints allow this many requests per client IP per window.
const (
	LoginRateLimit  = 10
	LoginRateWindow = time.Minute
)

type contextKey string

const authContextKey contextKey = "admin_auth"

// Auth is the authenticated admin attached to the request context by RequireAuth.
type Auth struct {
	Admin   *models.Admin
	Session *models.Session
}

// AuthFromContext returns the authenticated admin.
// This should be called from handlers protected by RequireAuth.
func AuthFromContext(ctx context.Context) (*Auth, bool) {
	auth, ok := ctx.Value(authContextKey).(*Auth)
	return auth, ok
}

// RequireAuth rejects requests without a valid session cookie with 401 and records activity
// on the session for the rest.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		plaintext := session.TokenFromRequest(r)

		result, err := h.sessions.ValidateSession(ctx, plaintext)
		if err != nil {
			h.internalError(w, err, "Failed to validate session")
			return
		}

		if !result.Valid {
			log.Debug().
				Str("path", r.URL.Path).
				Str("reason", string(result.Reason)).
				Msg("Rejected unauthenticated admin request")

			if plaintext != "" {
				session.ClearCookie(w)
			}
			httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := h.sessions.ExtendActivity(ctx, plaintext); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				// Revoked between validation and now.
				httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			h.internalError(w, err, "Failed to extend session")
			return
		}

		ctx = context.WithValue(ctx, authContextKey, &Auth{Admin: result.Admin, Session: result.Session})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Current        bool      `json:"current"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// ListSessions handles GET /admin/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := AuthFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.sessions.ListSessions(r.Context(), auth.Admin.AdminID)
	if err != nil {
		h.internalError(w, err, "Failed to list sessions")
		return
	}

	plaintext := session.TokenFromRequest(r)
	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse{
			SessionID:      s.SessionID.String(),
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			Current:        session.IsCurrent(s, plaintext),
		})
	}

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// RevokeSession handles DELETE /admin/sessions/{id}. Sessions of other admins are reported as
// not found.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	auth, ok := AuthFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	target, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		h.internalError(w, err, "Failed to get session")
		return
	}
	if target == nil || target.AdminID != auth.Admin.AdminID {
		httpx.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.sessions.RevokeSessionByID(r.Context(), sessionID); err != nil {
		h.internalError(w, err, "Failed to revoke session")
		return
	}

	if sessionID == auth.Session.SessionID {
		session.ClearCookie(w)
	}

	w.WriteHeader(http.StatusNoContent)
}

type revokeAllResponse struct {
	Revoked int `json:"revoked"`
}

// RevokeAllSessions handles POST /admin/sessions/revoke-all, signing the admin out everywhere
// including the current browser.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	auth, ok := AuthFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	count, err := h.sessions.RevokeAllSessions(r.Context(), auth.Admin.AdminID)
	if err != nil {
		h.internalError(w, err, "Failed to revoke sessions")
		return
	}

	session.ClearCookie(w)
	httpx.RespondJSON(w, http.StatusOK, revokeAllResponse{Revoked: count})
}

// Routes registers the admin endpoints on mux. Login endpoints are rate limited per client IP.
func (h *Handler) Routes(mux *http.ServeMux, limiter *ratelimit.Limiter) {
	limited := ratelimit.Middleware(limiter, LoginRateLimit, LoginRateWindow)

	mux.Handle("POST /admin/login", limited(http.HandlerFunc(h.Login)))
	mux.Handle("POST /admin/login/2fa", limited(http.HandlerFunc(h.VerifyTwoFactor)))
	mux.HandleFunc("POST /admin/logout", h.Logout)

	mux.Handle("GET /admin/sessions", h.RequireAuth(http.HandlerFunc(h.ListSessions)))
	mux.Handle("DELETE /admin/sessions/{id}", h.RequireAuth(http.HandlerFunc(h.RevokeSession)))
	mux.Handle("POST /admin/sessions/revoke-all", h.RequireAuth(http.HandlerFunc(h.RevokeAllSessions)))
}
