package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/shortlink/internal/lockout"
	"github.com/wolfeidau/shortlink/internal/store"
	memorystore "github.com/wolfeidau/shortlink/internal/store/memory"
	postgresstore "github.com/wolfeidau/shortlink/internal/store/postgres"
	redisstore "github.com/wolfeidau/shortlink/internal/store/redis"
)

// StoreFlags selects and configures the persistence gateway.
type StoreFlags struct {
	StoreType      string             `help:"store type (memory or postgres)" default:"postgres" env:"SHORTLINK_STORE_TYPE" enum:"memory,postgres"`
	SingleProcess  bool               `help:"acknowledge that the memory store is single process only" default:"false" env:"SHORTLINK_SINGLE_PROCESS"`
	RateLimitStore string             `help:"rate limit counter store (store or redis)" default:"store" env:"SHORTLINK_RATELIMIT_STORE" enum:"store,redis"`
	LockoutPolicy  string             `help:"YAML file overriding lockout policies" default:"" env:"SHORTLINK_LOCKOUT_POLICY_FILE"`
	PostgresStore  PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Redis          RedisFlags         `embed:"" prefix:"redis-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
	ConnectRetry    int32 `help:"seconds to keep retrying the initial connection" default:"30"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"SHORTLINK_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

type RedisFlags struct {
	URL      string `help:"Redis URL for shared rate limit counters" env:"SHORTLINK_REDIS_URL"`
	PoolSize int    `help:"Redis connection pool size" default:"10"`
}

// backends holds the stores a command works with.
type backends struct {
	admins        store.AdminStore
	users         store.UserStore
	links         store.LinkStore
	sessions      store.SessionStore
	challenges    store.ChallengeStore
	adminAttempts store.AttemptStore
	userAttempts  store.AttemptStore
	rateLimits    store.RateLimitStore

	adminPolicies lockout.Policies
	userPolicies  lockout.Policies

	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (f *StoreFlags) open(ctx context.Context, log zerolog.Logger) (*backends, error) {
	b := &backends{
		adminPolicies: lockout.AdminPolicies(),
		userPolicies:  lockout.UserPolicies(),
	}

	if f.LockoutPolicy != "" {
		file, err := lockout.LoadPolicyFile(f.LockoutPolicy)
		if err != nil {
			return nil, err
		}
		b.adminPolicies = b.adminPolicies.Merge(file.Admin)
		b.userPolicies = b.userPolicies.Merge(file.User)
		log.Info().Str("path", f.LockoutPolicy).Msg("Loaded lockout policy overrides")
	}

	switch f.StoreType {
	case "postgres":
		if err := f.PostgresStore.Validate(); err != nil {
			return nil, err
		}

		pool, err := postgresstore.Open(ctx, &postgresstore.Config{
			Pool: postgresstore.PoolConfig{
				ConnString:          f.PostgresStore.ConnString,
				MaxConns:            f.PostgresStore.MaxConns,
				MinConns:            f.PostgresStore.MinConns,
				MaxConnLifetime:     f.PostgresStore.MaxConnLifetime,
				MaxConnIdleTime:     f.PostgresStore.MaxConnIdleTime,
				ConnectRetrySeconds: f.PostgresStore.ConnectRetry,
			},
			AutoMigrate: f.PostgresStore.AutoMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		stores := postgresstore.NewStores(pool)
		b.admins = stores.Admins
		b.users = stores.Users
		b.links = stores.Links
		b.sessions = stores.Sessions
		b.challenges = stores.Challenges
		b.adminAttempts = stores.AdminAttempts
		b.userAttempts = stores.UserAttempts
		b.rateLimits = stores.RateLimits

		log.Info().Bool("auto_migrate", f.PostgresStore.AutoMigrate).Msg("Using PostgreSQL stores with shared connection pool")

	case "memory":
		if !f.SingleProcess {
			return nil, errors.New("the memory store keeps state in this process only, pass --single-process to use it")
		}

		b.admins = memorystore.NewAdminStore()
		b.users = memorystore.NewUserStore()
		b.links = memorystore.NewLinkStore()
		b.sessions = memorystore.NewSessionStore()
		b.challenges = memorystore.NewChallengeStore()
		b.adminAttempts = memorystore.NewAttemptStore()
		b.userAttempts = memorystore.NewAttemptStore()
		b.rateLimits = memorystore.NewRateLimitStore()

		log.Warn().Msg("Using in-memory stores, state is lost on restart and not shared between processes")

	default:
		return nil, fmt.Errorf("unknown store type %q", f.StoreType)
	}

	if f.RateLimitStore == "redis" {
		if f.Redis.URL == "" {
			b.Close()
			return nil, errors.New("redis URL is required (--redis-url or SHORTLINK_REDIS_URL)")
		}

		client, err := redisstore.NewClient(ctx, redisstore.ClientConfig{URL: f.Redis.URL, PoolSize: f.Redis.PoolSize})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		})

		b.rateLimits = redisstore.NewRateLimitStore(client)
		log.Info().Msg("Using Redis rate limit counters")
	}

	return b, nil
}

func (b *backends) adminLockouts() (*lockout.Tracker, error) {
	return lockout.NewTracker("admin", b.adminAttempts, b.adminPolicies)
}

func (b *backends) userLockouts() (*lockout.Tracker, error) {
	return lockout.NewTracker("user", b.userAttempts, b.userPolicies)
}
