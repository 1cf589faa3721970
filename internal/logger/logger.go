package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// HTTPRequests attaches a request scoped logger to the context and logs each completed request.
// Query strings are not logged, they may carry codes or tokens.
type HTTPRequests struct {
	logger zerolog.Logger
}

func NewHTTPRequests(logger zerolog.Logger) *HTTPRequests {
	return &HTTPRequests{logger: logger}
}

func (h *HTTPRequests) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := h.logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("addr", r.RemoteAddr).
			Logger().WithContext(r.Context())

		m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

		event := zerolog.Ctx(ctx).Info()
		if m.Code >= http.StatusInternalServerError {
			event = zerolog.Ctx(ctx).Error()
		}

		event.
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", m.Duration).
			Msg("http request")
	})
}
