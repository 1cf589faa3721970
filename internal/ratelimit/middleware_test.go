package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	httpx "github.com/wolfeidau/shortlink/internal/http"
)

func TestMiddleware(t *testing.T) {
	limiter, clock, _ := newTestLimiter(t)

	calls := 0
	handler := httpx.ClientIPMiddleware(false)(
		Middleware(limiter, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusNoContent)
		})),
	)

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		r.RemoteAddr = remoteAddr
		handler.ServeHTTP(w, r)
		return w
	}

	resetAt := strconv.FormatInt(clock.now.Add(time.Minute).Unix(), 10)

	w := send("203.0.113.7:5000")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, resetAt, w.Header().Get("X-RateLimit-Reset"))

	w = send("203.0.113.7:5001")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(15 * time.Second)

	w = send("203.0.113.7:5002")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "45", w.Header().Get("Retry-After"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, resetAt, w.Header().Get("X-RateLimit-Reset"))
	require.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
	require.Equal(t, 2, calls)

	// Another caller has its own window
	w = send("198.51.100.2:5000")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, 3, calls)
}

func TestMiddleware_IgnoresForwardedHeadersWithoutClientIP(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)

	handler := Middleware(limiter, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(forwardedFor string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		r.RemoteAddr = "203.0.113.7:5000"
		r.Header.Set("X-Forwarded-For", forwardedFor)
		handler.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, http.StatusNoContent, send("198.51.100.1").Code)

	// A rotated header does not buy a fresh window, the key is the peer address.
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.2").Code)
}
