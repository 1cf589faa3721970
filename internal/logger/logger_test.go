package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequests(t *testing.T) {
	var buf bytes.Buffer
	requests := NewHTTPRequests(zerolog.New(&buf))

	var fromContext bool
	handler := requests.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/login?code=123456", nil)
	handler.ServeHTTP(w, r)

	require.True(t, fromContext)
	require.Equal(t, http.StatusTeapot, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "http request", entry["message"])
	require.Equal(t, "POST", entry["method"])
	require.Equal(t, "/admin/login", entry["path"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
	require.EqualValues(t, len("short and stout"), entry["bytes"])
	require.NotContains(t, buf.String(), "123456")
}

func TestHTTPRequests_serverErrorLogsAtError(t *testing.T) {
	var buf bytes.Buffer
	requests := NewHTTPRequests(zerolog.New(&buf))

	handler := requests.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/sessions", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
}
