package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/shortlink/internal/credential"
	httpmiddleware "github.com/wolfeidau/shortlink/internal/http"
	"github.com/wolfeidau/shortlink/internal/links"
	"github.com/wolfeidau/shortlink/internal/logger"
	"github.com/wolfeidau/shortlink/internal/login"
	"github.com/wolfeidau/shortlink/internal/mail"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/session"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"github.com/wolfeidau/shortlink/internal/verify"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"SHORTLINK_LISTEN"`
	Cert   string `help:"path to TLS cert file, plain HTTP when empty" default:"" env:"SHORTLINK_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"SHORTLINK_TLS_KEY"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP, only enable behind a proxy that sets them.
	TrustProxy bool `help:"trust client IP headers set by a reverse proxy" default:"false" env:"SHORTLINK_TRUST_PROXY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for public API requests" default:"https://localhost" env:"SHORTLINK_CORS_ORIGINS"`

	// Admin session configuration
	SessionInactivityMinutes int `help:"minutes of inactivity before an admin session ends" default:"30" env:"ADMIN_SESSION_INACTIVITY_MINUTES"`
	SessionMaxHours          int `help:"hours before an admin session ends regardless of activity" default:"12" env:"ADMIN_SESSION_MAX_HOURS"`

	// Credential check configuration
	CredentialFloor time.Duration `help:"minimum duration of a credential check, calibrated when zero" default:"0s" env:"SHORTLINK_CREDENTIAL_FLOOR"`

	Tracing bool `help:"enable tracing and metrics export" default:"false" env:"SHORTLINK_TRACING"`

	Store StoreFlags `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.SessionInactivityMinutes <= 0 || c.SessionMaxHours <= 0 {
		return fmt.Errorf("session inactivity minutes and max hours must be positive, got %d and %d",
			c.SessionInactivityMinutes, c.SessionMaxHours)
	}
	sessionCfg := session.ConfigFromMinutesHours(c.SessionInactivityMinutes, c.SessionMaxHours)
	sessionCfg.ApplyDefaults()
	if err := sessionCfg.Validate(); err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{ServiceName: "shortlink-server", Version: globals.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	b, err := c.Store.open(ctx, log)
	if err != nil {
		return err
	}
	defer b.Close()

	var checkerOpts []credential.Option
	if c.CredentialFloor > 0 {
		checkerOpts = append(checkerOpts, credential.WithFloor(c.CredentialFloor))
	}
	checker, err := credential.NewChecker(checkerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create credential checker: %w", err)
	}

	sessions, err := session.NewManager(b.sessions, b.admins, sessionCfg)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	adminLockouts, err := b.adminLockouts()
	if err != nil {
		return err
	}
	userLockouts, err := b.userLockouts()
	if err != nil {
		return err
	}

	limiter, err := ratelimit.NewLimiter(b.rateLimits)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}

	mailer := mail.NewLogMailer()
	if !mailTransportConfigured {
		log.Warn().Msg("No mail transport, two-factor and email verification codes are logged without their body and cannot be delivered")
	}

	loginHandler, err := login.NewHandler(sessions, b.admins, b.challenges, adminLockouts, checker, mailer)
	if err != nil {
		return fmt.Errorf("failed to create login handler: %w", err)
	}
	unlockHandler, err := links.NewHandler(b.links, checker)
	if err != nil {
		return fmt.Errorf("failed to create unlock handler: %w", err)
	}
	verifyHandler, err := verify.NewHandler(b.users, userLockouts, checker, mailer)
	if err != nil {
		return fmt.Errorf("failed to create verify handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	loginHandler.Routes(mux, limiter)
	unlockHandler.Routes(mux, limiter)
	verifyHandler.Routes(mux, limiter)

	log.Info().
		Dur("inactivity_timeout", sessionCfg.InactivityTimeout).
		Dur("max_lifetime", sessionCfg.MaxLifetime).
		Dur("credential_floor", checker.Floor()).
		Msg("Admin and account routes registered")

	// CSRF protection for admin routes (not applied to the public API)
	protection := csrf.New()
	api := withCORS(c.CORSOrigins, mux)
	admin := protection.Handler(mux)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API routes get CORS, everything else gets CSRF
		if isAPIRoute(r.URL.Path) {
			api.ServeHTTP(w, r)
		} else {
			admin.ServeHTTP(w, r)
		}
	})
	handler = gzhttp.GzipHandler(handler)
	handler = httpmiddleware.ClientIPMiddleware(c.TrustProxy)(handler)
	handler = logger.NewHTTPRequests(log).Handler(handler)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "shortlink-server")
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Bool("trust_proxy", c.TrustProxy).Msg("Starting HTTP server")
		errCh <- listen(srv, c.Cert, c.Key)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func listen(srv *http.Server, cert, key string) error {
	if cert == "" && key == "" {
		return srv.ListenAndServe()
	}
	if cert == "" || key == "" {
		return errors.New("TLS certificate and key must be given together (--cert and --key)")
	}
	if _, err := os.Stat(cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", cert, err)
	}
	if _, err := os.Stat(key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", key, err)
	}
	return srv.ListenAndServeTLS(cert, key)
}

// isAPIRoute returns true if the path is a public API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support to the public API.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})
	return middleware.Handler(h)
}
