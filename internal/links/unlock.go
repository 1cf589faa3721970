// Package links serves the public endpoint that unlocks password protected short links.
package links

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/store"
)

// Unlock endpoints allow this many requests per client IP and link per window.
const (
	UnlockRateLimit  = 10
	UnlockRateWindow = time.Minute
)

// Verifier compares a candidate secret with a stored hash in constant time.
type Verifier interface {
	Verify(ctx context.Context, storedHash, candidate string) bool
}

// Handler unlocks password protected links.
type Handler struct {
	links    store.LinkStore
	verifier Verifier
}

// NewHandler creates an unlock handler.
func NewHandler(links store.LinkStore, verifier Verifier) (*Handler, error) {
	if links == nil || verifier == nil {
		return nil, errors.New("link store and verifier are required")
	}

	return &Handler{links: links, verifier: verifier}, nil
}

type unlockRequest struct {
	Password string `json:"password"`
}

type unlockResponse struct {
	URL string `json:"url"`
}

// Unlock handles POST /api/links/{code}/unlock.
//
// Unknown links, public links and wrong passwords all get the same 401 after the same amount
// of work, so the response does not reveal which short codes exist.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.PathValue("code")

	var req unlockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if code == "" || req.Password == "" {
		httpx.RespondError(w, http.StatusBadRequest, "password is required")
		return
	}

	link, err := h.links.GetByCode(ctx, code)
	if err != nil && !errors.Is(err, store.ErrLinkNotFound) {
		log.Error().Err(err).Str("code", code).Msg("Failed to get link")
		httpx.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	storedHash := ""
	if link != nil {
		storedHash = link.PasswordHash
	}

	if !h.verifier.Verify(ctx, storedHash, req.Password) {
		log.Debug().Str("code", code).Msg("Link unlock rejected")
		httpx.RespondError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, unlockResponse{URL: link.TargetURL})
}

// Routes registers the unlock endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux, limiter *ratelimit.Limiter) {
	limited := ratelimit.Middleware(limiter, UnlockRateLimit, UnlockRateWindow)

	mux.Handle("POST /api/links/{code}/unlock", limited(http.HandlerFunc(h.Unlock)))
}
