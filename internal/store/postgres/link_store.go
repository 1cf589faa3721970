package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

// LinkStore implements store.LinkStore using PostgreSQL.
type LinkStore struct {
	pool *pgxpool.Pool
}

// NewLinkStore creates a new PostgreSQL-backed link store.
func NewLinkStore(pool *pgxpool.Pool) *LinkStore {
	return &LinkStore{
		pool: pool,
	}
}

// Create creates a new link.
func (s *LinkStore) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (code, target_url, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, link.Code, link.TargetURL, link.PasswordHash, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", mapPostgresError(err))
	}

	return nil
}

// GetByCode retrieves a link by its short code.
func (s *LinkStore) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT code, target_url, password_hash, created_at
		FROM links
		WHERE code = $1
	`

	var link models.Link
	err := s.pool.QueryRow(ctx, query, code).Scan(
		&link.Code,
		&link.TargetURL,
		&link.PasswordHash,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", mapPostgresError(err))
	}

	return &link, nil
}
