// Package postgres stores finished games in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tictactoe-bot/internal/config"
)

// DefaultHealthTimeout bounds Health when the caller passes no timeout.
const DefaultHealthTimeout = 5 * time.Second

// ErrNotMigrated is returned by Health when the game history schema is missing.
var ErrNotMigrated = errors.New("game history schema missing, run cmd/migrate")

// Pool is the connection pool of the game history database.
type Pool struct {
	pool    *pgxpool.Pool
	results *ResultRepository
}

// NewPool connects to the game history database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a connected Pool or a non-nil error. The schema is
// not checked; call Health for that.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "tictactoe-bot"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool, results: NewResultRepository(pool)}, nil
}

// Health checks that the database answers within timeout and that the
// game_results table exists. A timeout <= 0 means DefaultHealthTimeout.
//
// Precondition: The pool must not be closed.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var table *string
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('game_results')::text`).Scan(&table); err != nil {
		return fmt.Errorf("checking game history schema: %w", err)
	}
	if table == nil {
		return ErrNotMigrated
	}
	return nil
}

// Results returns the game history repository backed by this pool.
func (p *Pool) Results() *ResultRepository {
	return p.results
}

// Close releases all pool resources.
//
// Postcondition: The pool is no longer usable after calling Close.
func (p *Pool) Close() {
	p.pool.Close()
}
