package links

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/shortlink/internal/credential"
	httpx "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

const floor = 40 * time.Millisecond

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	checker, err := credential.NewChecker(credential.WithCost(bcrypt.MinCost), credential.WithFloor(floor))
	require.NoError(t, err)

	links := memory.NewLinkStore()
	ctx := context.Background()

	hash, err := checker.Hash("hunter2")
	require.NoError(t, err)
	require.NoError(t, links.Create(ctx, &models.Link{Code: "secret", TargetURL: "https://example.com/private", PasswordHash: hash}))
	require.NoError(t, links.Create(ctx, &models.Link{Code: "public", TargetURL: "https://example.com/"}))

	handler, err := NewHandler(links, checker)
	require.NoError(t, err)

	limiter, err := ratelimit.NewLimiter(memory.NewRateLimitStore())
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.Routes(mux, limiter)

	return httpx.ClientIPMiddleware(false)(mux)
}

func unlock(server http.Handler, code, body string) (*httptest.ResponseRecorder, time.Duration) {
	r := httptest.NewRequest(http.MethodPost, "/api/links/"+code+"/unlock", strings.NewReader(body))
	w := httptest.NewRecorder()

	started := time.Now()
	server.ServeHTTP(w, r)
	return w, time.Since(started)
}

func TestUnlock(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name   string
		code   string
		body   string
		status int
	}{
		{name: "correct password", code: "secret", body: `{"password":"hunter2"}`, status: http.StatusOK},
		{name: "wrong password", code: "secret", body: `{"password":"hunter3"}`, status: http.StatusUnauthorized},
		{name: "unknown link", code: "missing", body: `{"password":"hunter2"}`, status: http.StatusUnauthorized},
		{name: "public link", code: "public", body: `{"password":"hunter2"}`, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, elapsed := unlock(server, tt.code, tt.body)
			require.Equal(t, tt.status, w.Code)
			require.GreaterOrEqual(t, elapsed, floor)

			if tt.status == http.StatusOK {
				require.JSONEq(t, `{"url":"https://example.com/private"}`, w.Body.String())
			} else {
				require.JSONEq(t, `{"error":"invalid password"}`, w.Body.String())
			}
		})
	}
}

func TestUnlock_MissingPassword(t *testing.T) {
	server := newTestServer(t)

	w, _ := unlock(server, "secret", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
