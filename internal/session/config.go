package session

import (
	"fmt"
	"time"
)

const (
	DefaultInactivityTimeout = 30 * time.Minute
	DefaultMaxLifetime       = 12 * time.Hour
	DefaultRevokedRetention  = 7 * 24 * time.Hour
)

// Config holds the session expiry policy.
type Config struct {
	// InactivityTimeout revokes a session that has not been used for this long.
	// Default: 30 minutes
	InactivityTimeout time.Duration

	// MaxLifetime is the absolute lifetime of a session regardless of activity.
	// Default: 12 hours
	MaxLifetime time.Duration

	// RevokedRetention is how long revoked sessions are kept for audit before cleanup deletes them.
	// Default: 7 days
	RevokedRetention time.Duration
}

// ConfigFromMinutesHours builds a Config from the integer settings exposed in the environment.
// Zero means "use the default"; negative values are rejected by Validate.
func ConfigFromMinutesHours(inactivityMinutes, maxLifetimeHours int) Config {
	return Config{
		InactivityTimeout: time.Duration(inactivityMinutes) * time.Minute,
		MaxLifetime:       time.Duration(maxLifetimeHours) * time.Hour,
	}
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	if c.RevokedRetention == 0 {
		c.RevokedRetention = DefaultRevokedRetention
	}
}

// Validate checks that every window is positive so expiry can never be silently disabled.
func (c *Config) Validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %s", c.InactivityTimeout)
	}
	if c.MaxLifetime <= 0 {
		return fmt.Errorf("max lifetime must be positive, got %s", c.MaxLifetime)
	}
	if c.RevokedRetention <= 0 {
		return fmt.Errorf("revoked retention must be positive, got %s", c.RevokedRetention)
	}
	return nil
}
