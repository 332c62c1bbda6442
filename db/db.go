// Package db implements the Postgres storage of payments, agents, demand
// signals, audits, brain insights and orchestrator runs.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.vocdoni.io/dvote/log"
)

const (
	connectTimeout = 10 * time.Second
	defaultLimit   = 50
	maxLimit       = 500
)

// PostgresStorage uses an external Postgres server for storing the dashboard
// data.
type PostgresStorage struct {
	pool *pgxpool.Pool
	url  string
}

// New connects to Postgres, checks the connection and applies any pending
// migration.
func New(url string) (*PostgresStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres URL is not defined")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres URL: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnIdleTime = 5 * time.Minute
	log.Infow("connecting to postgres", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	ps := &PostgresStorage{pool: pool, url: url}
	if err := ps.RunMigrationsUp(); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

// Close releases every pooled connection.
func (ps *PostgresStorage) Close() {
	ps.pool.Close()
}

// URL returns the connection string the storage was created with, used by
// components that need a dedicated connection such as LISTEN.
func (ps *PostgresStorage) URL() string {
	return ps.url
}

// Ping round-trips a trivial query and returns how long it took.
func (ps *PostgresStorage) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := ps.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Reset removes every row of the domain tables. Used by tests.
func (ps *PostgresStorage) Reset(ctx context.Context) error {
	log.Infof("resetting database")
	_, err := ps.pool.Exec(ctx, `TRUNCATE payments, agent_executions, agents, demand_signals,
		demand_snapshots, system_audits, brain_insights, orchestrator_runs, connect_accounts`)
	return err
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
