// Package relstore is the relational store client (spec.md §2 component 2):
// connection pool, typed access to every table in spec.md §3, and a
// transaction helper used by the ingestion coordinator and extraction
// worker for their atomic multi-row writes.
package relstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool creates a Postgres connection pool with conservative, bounded
// defaults, matching the "scoped resource acquisition" design note in
// spec.md §9: a single pool shared by the RPC facade and every worker, no
// implicit ambient state.
func OpenPool(ctx context.Context, dsn string, minConns, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("relstore: parse dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 8
	}
	cfg.MinConns = minConns
	cfg.MaxConns = maxConns
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("relstore: create pool: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("relstore: ping: %w", err)
	}
	return pool, nil
}
