// Package postgresdb opens pgx connection pools and applies the embedded
// schema migrations.
package postgresdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrazmi/habitsync/sdk/environment"
	"github.com/jrazmi/habitsync/sdk/logger"
)

// PostgreSQL error codes
const (
	uniqueViolation = "23505"
	undefinedTable  = "42P01"
)

var (
	ErrDBNotFound        = pgx.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrUndefinedTable    = errors.New("undefined table")
)

type Pool = pgxpool.Pool

// Options represents the exportable database configuration
type Options struct {
	DatabaseURL string        `mapstructure:"url" env:"PG_DATABASE_URL"`
	MaxConns    int           `mapstructure:"max_conns" env:"PG_DATABASE_MAX_CONNS" default:"4"`
	MinConns    int           `mapstructure:"min_conns" env:"PG_DATABASE_MIN_CONNS" default:"1"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime" env:"PG_DATABASE_MAX_LIFETIME" default:"1h"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time" env:"PG_DATABASE_MAX_IDLE_TIME" default:"30m"`
	HealthCheck time.Duration `mapstructure:"health_check" env:"PG_DATABASE_HEALTH_CHECK" default:"1m"`
}

type options struct {
	log            *logger.Logger
	tracer         pgx.QueryTracer
	connectTimeout time.Duration
	logQueries     bool
}

type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithTracer sets a custom query tracer
func WithTracer(tracer pgx.QueryTracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = timeout
	}
}

// WithLogQueries enables query logging at debug level.
func WithLogQueries(enable bool) Option {
	return func(o *options) {
		o.logQueries = enable
	}
}

// NewFromEnv creates a pool using environment variables
func NewFromEnv(prefix string, opts ...Option) (*pgxpool.Pool, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	return New(cfg, opts...)
}

// New opens a pool for cfg and verifies it with a ping.
func New(cfg Options, opts ...Option) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url is required")
	}

	o := &options{connectTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewDiscard()
	}
	if o.tracer == nil && o.logQueries {
		o.tracer = NewMultiQueryTracer(NewLoggingQueryTracer(o.log))
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}
	if cfg.MaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxIdleTime
	}
	if cfg.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheck
	}
	if o.tracer != nil {
		poolConfig.ConnConfig.Tracer = o.tracer
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// StatusCheck returns nil if it can successfully talk to the database
func StatusCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}
	return pool.Ping(ctx)
}

// HandlePgError converts PostgreSQL errors to application errors
func HandlePgError(err error) error {
	if err == nil {
		return nil
	}

	var pqerr *pgconn.PgError
	if errors.As(err, &pqerr) {
		switch pqerr.Code {
		case undefinedTable:
			return ErrUndefinedTable
		case uniqueViolation:
			return ErrDBDuplicatedEntry
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDBNotFound
	}
	return err
}
