package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// The shortlink schema: admins, admin_sessions, two_factor_challenges, users, links, the two
// verification attempt tables and rate_limits. Files are named <version>_<name>.sql.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

// RunMigrations applies every embedded migration not yet recorded in schema_migrations,
// lowest version first. Each migration and its schema_migrations row commit together.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	log.Info().Int("count", len(migrations)).Msg("Running database migrations")

	for _, m := range migrations {
		if err := applyMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}

	log.Info().Msg("Database schema is up to date")
	return nil
}

// loadMigrations reads migrations/*.sql from fsys sorted by version.
// Duplicate versions are an error since only one of them could ever be recorded.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		prefix, _, ok := strings.Cut(entry.Name(), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping migration without a numeric version prefix")
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, entry.Name(), version)
		}
		seen[version] = entry.Name()

		data, err := fs.ReadFile(fsys, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, migration{version: version, name: entry.Name(), sql: string(data)})
	}

	slices.SortFunc(migrations, func(a, b migration) int {
		return a.version - b.version
	})

	return migrations, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	applied, err := migrationApplied(ctx, pool, m.version)
	if err != nil {
		return err
	}
	if applied {
		log.Debug().Int("version", m.version).Str("name", m.name).Msg("Migration already applied, skipping")
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	log.Info().Int("version", m.version).Str("name", m.name).Msg("Applying migration")

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", mapPostgresError(err))
	}

	// The first migration creates schema_migrations, so this runs after it.
	_, err = tx.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at)
		VALUES ($1, $2, now())
	`, m.version, m.name)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// migrationApplied reports whether version is recorded. A missing schema_migrations table
// means a fresh database.
func migrationApplied(ctx context.Context, pool *pgxpool.Pool, version int) (bool, error) {
	var applied bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&applied)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}

	return applied, nil
}
