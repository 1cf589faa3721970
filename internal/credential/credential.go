// Package credential compares secrets against stored bcrypt hashes without leaking,
// through response latency, whether the stored record existed.
package credential

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/telemetry"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when hashing an empty secret.
var ErrEmptySecret = errors.New("secret must not be empty")

const (
	calibrationRounds = 3
	// Headroom added on top of the slowest calibrated comparison.
	calibrationMarginDivisor = 4
)

// Checker verifies secrets in constant time.
//
// Every call to Verify runs exactly one bcrypt comparison, against the stored hash when there
// is one and against a dummy hash of the same cost otherwise, and then waits until a fixed
// floor has elapsed since the call started.
type Checker struct {
	cost      int
	floor     time.Duration
	dummyHash []byte
}

// Option configures a Checker.
type Option func(*Checker)

// WithCost sets the bcrypt cost used for hashing and for the dummy hash.
func WithCost(cost int) Option {
	return func(c *Checker) {
		c.cost = cost
	}
}

// WithFloor sets the minimum duration of Verify instead of calibrating it.
func WithFloor(d time.Duration) Option {
	return func(c *Checker) {
		c.floor = d
	}
}

// NewChecker creates a Checker. Unless WithFloor is given, the floor is measured by timing the
// slowest of a few dummy comparisons and adding a margin.
func NewChecker(opts ...Option) (*Checker, error) {
	c := &Checker{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(c)
	}

	if c.cost < bcrypt.MinCost || c.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	// The dummy secret is random and never leaves this struct.
	dummy := rand.Text()
	hash, err := bcrypt.GenerateFromPassword([]byte(dummy), c.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to create dummy hash: %w", err)
	}
	c.dummyHash = hash

	if c.floor <= 0 {
		c.floor = c.calibrate()
	}

	log.Debug().
		Int("cost", c.cost).
		Dur("floor", c.floor).
		Msg("Credential checker ready")

	return c, nil
}

// Floor returns the minimum duration of a Verify call.
func (c *Checker) Floor() time.Duration {
	return c.floor
}

// Hash returns the bcrypt hash of secret at the checker's cost.
func (c *Checker) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether candidate matches storedHash.
//
// storedHash is empty when the subject doesn't exist or has no secret configured; the call
// still performs a full comparison and takes as long as a real mismatch.
func (c *Checker) Verify(ctx context.Context, storedHash, candidate string) bool {
	started := time.Now()

	hash := c.dummyHash
	if storedHash != "" {
		hash = []byte(storedHash)
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(candidate))
	matched := storedHash != "" && err == nil

	c.pad(ctx, started)

	telemetry.GetMetrics().CredentialCheckDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	return matched
}

// pad blocks until the floor has elapsed since started, or ctx is done.
func (c *Checker) pad(ctx context.Context, started time.Time) {
	remaining := c.floor - time.Since(started)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Checker) calibrate() time.Duration {
	var slowest time.Duration
	for range calibrationRounds {
		started := time.Now()
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte("calibration"))
		if elapsed := time.Since(started); elapsed > slowest {
			slowest = elapsed
		}
	}

	return slowest + slowest/calibrationMarginDivisor
}
