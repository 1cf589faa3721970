package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

const userColumns = `
	user_id, email, active, email_verified_at,
	verification_code_hash, verification_expires_at,
	created_at, updated_at
`

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

// Create creates a new user in the database.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		user.UserID,
		user.Email,
		user.Active,
		user.EmailVerifiedAt,
		user.VerificationCodeHash,
		user.VerificationExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	return s.getOne(ctx, query, userID)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return s.getOne(ctx, query, email)
}

// Update replaces the mutable fields of an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
			active = $3,
			email_verified_at = $4,
			verification_code_hash = $5,
			verification_expires_at = $6,
			updated_at = $7
		WHERE user_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		user.UserID,
		user.Email,
		user.Active,
		user.EmailVerifiedAt,
		user.VerificationCodeHash,
		user.VerificationExpiresAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.UserID,
		&user.Email,
		&user.Active,
		&user.EmailVerifiedAt,
		&user.VerificationCodeHash,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}

	return &user, nil
}
