// Package postgres stores persistent characters and saved encounters in
// PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/config"
)

// ErrSchemaNotMigrated is returned by SchemaVersion when the migrate tool has
// never run against the database.
var ErrSchemaNotMigrated = errors.New("database schema not migrated")

// Pool wraps the pgx pool shared by the tracker repositories.
type Pool struct {
	db *pgxpool.Pool
}

type poolOptions struct {
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// PoolOption configures NewPool.
type PoolOption func(*poolOptions)

// WithConnectRetry pings up to attempts times, waiting backoff*n after the
// nth failure. The database container commonly starts after the tracker.
func WithConnectRetry(attempts int, backoff time.Duration) PoolOption {
	return func(o *poolOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		o.backoff = backoff
	}
}

// WithLogger reports failed connection attempts to logger.
func WithLogger(logger *zap.Logger) PoolOption {
	return func(o *poolOptions) { o.logger = logger }
}

// NewPool connects to the database described by cfg.
//
// Precondition: cfg must pass config validation.
// Postcondition: Returns a pool that answered a ping, or an error after the
// last attempt. ctx cancellation aborts the retries.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*Pool, error) {
	o := poolOptions{attempts: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "tracker"

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = db.Ping(ctx)
		if err == nil {
			return &Pool{db: db}, nil
		}
		if attempt >= o.attempts {
			db.Close()
			return nil, fmt.Errorf("pinging database after %d attempt(s): %w", attempt, err)
		}
		wait := o.backoff * time.Duration(attempt)
		o.logger.Warn("database not ready",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("connecting to database: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// Health pings the database with timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.db.Ping(ctx)
}

// SchemaVersion returns the version golang-migrate recorded and whether the
// last migration left the schema dirty.
//
// Postcondition: Returns ErrSchemaNotMigrated when no version is recorded.
func (p *Pool) SchemaVersion(ctx context.Context) (version int64, dirty bool, err error) {
	err = p.db.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err == nil {
		return version, dirty, nil
	}
	if errors.Is(err, pgx.ErrNoRows) || isUndefinedTableError(err) {
		return 0, false, ErrSchemaNotMigrated
	}
	return 0, false, fmt.Errorf("reading schema version: %w", err)
}

// Close releases all connections.
func (p *Pool) Close() {
	p.db.Close()
}

// DB returns the pgx pool for repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}
