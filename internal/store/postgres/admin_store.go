package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

const adminColumns = `
	admin_id, email, password_hash, active, two_factor_enabled,
	created_at, updated_at, last_login_at
`

// AdminStore implements store.AdminStore using PostgreSQL.
type AdminStore struct {
	pool *pgxpool.Pool
}

// NewAdminStore creates a new PostgreSQL-backed admin store.
func NewAdminStore(pool *pgxpool.Pool) *AdminStore {
	return &AdminStore{
		pool: pool,
	}
}

// Create creates a new admin in the database.
func (s *AdminStore) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (` + adminColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		admin.AdminID,
		admin.Email,
		admin.PasswordHash,
		admin.Active,
		admin.TwoFactorEnabled,
		admin.CreatedAt,
		admin.UpdatedAt,
		admin.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", mapPostgresError(err))
	}

	log.Info().
		Str("admin_id", admin.AdminID.String()).
		Msg("Created admin")

	return nil
}

// Get retrieves an admin by ID.
func (s *AdminStore) Get(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE admin_id = $1`

	return s.getOne(ctx, query, adminID)
}

// GetByEmail retrieves an admin by email.
func (s *AdminStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1`

	return s.getOne(ctx, query, email)
}

// UpdateLastLogin stamps last_login_at.
func (s *AdminStore) UpdateLastLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error {
	query := `
		UPDATE admins
		SET last_login_at = $2, updated_at = $2
		WHERE admin_id = $1
	`

	result, err := s.pool.Exec(ctx, query, adminID, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrAdminNotFound
	}

	return nil
}

func (s *AdminStore) getOne(ctx context.Context, query string, arg any) (*models.Admin, error) {
	var admin models.Admin
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&admin.AdminID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Active,
		&admin.TwoFactorEnabled,
		&admin.CreatedAt,
		&admin.UpdatedAt,
		&admin.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", mapPostgresError(err))
	}

	return &admin, nil
}
