package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores bundles every PostgreSQL-backed store over one pool.
type Stores struct {
	Admins        *AdminStore
	Users         *UserStore
	Links         *LinkStore
	Sessions      *SessionStore
	Challenges    *ChallengeStore
	AdminAttempts *AttemptStore
	UserAttempts  *AttemptStore
	RateLimits    *RateLimitStore
}

// NewStores creates all stores over pool.
func NewStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Admins:        NewAdminStore(pool),
		Users:         NewUserStore(pool),
		Links:         NewLinkStore(pool),
		Sessions:      NewSessionStore(pool),
		Challenges:    NewChallengeStore(pool),
		AdminAttempts: &AttemptStore{pool: pool, table: AdminAttemptsTable},
		UserAttempts:  &AttemptStore{pool: pool, table: UserAttemptsTable},
		RateLimits:    NewRateLimitStore(pool),
	}
}
