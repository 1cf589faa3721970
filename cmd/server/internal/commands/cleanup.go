package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/shortlink/internal/logger"
	"github.com/wolfeidau/shortlink/internal/login"
	"github.com/wolfeidau/shortlink/internal/ratelimit"
	"github.com/wolfeidau/shortlink/internal/session"
)

// CleanupCmd runs one housekeeping pass. Schedule it externally, e.g. from cron.
type CleanupCmd struct {
	SessionRetention time.Duration `help:"how long revoked sessions are kept" default:"168h" env:"ADMIN_SESSION_REVOKED_RETENTION"`

	Store StoreFlags `embed:""`
}

func (c *CleanupCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if c.Store.StoreType == "memory" {
		log.Warn().Msg("Cleanup against in-memory stores only affects this process")
	}

	b, err := c.Store.open(ctx, log)
	if err != nil {
		return err
	}
	defer b.Close()

	sessions, err := session.NewManager(b.sessions, b.admins, session.Config{RevokedRetention: c.SessionRetention})
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

	started := time.Now()

	deletedSessions, err := sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}
	adminAttempts, err := adminLockouts.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up admin lockouts: %w", err)
	}
	userAttempts, err := userLockouts.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up user lockouts: %w", err)
	}
	rateLimits, err := limiter.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up rate limits: %w", err)
	}
	challenges, err := login.CleanupExpiredChallenges(ctx, b.challenges, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up challenges: %w", err)
	}

	log.Info().
		Int("sessions", deletedSessions).
		Int("admin_attempts", adminAttempts).
		Int("user_attempts", userAttempts).
		Int("rate_limits", rateLimits).
		Int("challenges", challenges).
		Dur("duration", time.Since(started)).
		Msg("Cleanup completed")

	return nil
}
