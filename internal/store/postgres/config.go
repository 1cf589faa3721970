package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds configuration for the PostgreSQL stores.
type Config struct {
	Pool PoolConfig

	// AutoMigrate applies pending migrations when the pool is opened.
	AutoMigrate bool
}

// Open connects to PostgreSQL and, if enabled, brings the schema up to date.
func Open(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres config is required")
	}

	pool, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return pool, nil
}
