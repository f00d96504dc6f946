// Package postgres provides PostgreSQL persistence for runs, queries, the
// candidate ledger, and the event log.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and verifies it.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           UUID PRIMARY KEY,
			status       TEXT NOT NULL,
			stop_reason  TEXT NOT NULL DEFAULT '',
			seed_count   INT NOT NULL DEFAULT 0,
			counters     JSONB NOT NULL DEFAULT '{}',
			started_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at  TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id             BIGSERIAL PRIMARY KEY,
			run_id         UUID NOT NULL REFERENCES runs(id),
			text           TEXT NOT NULL,
			origin         TEXT NOT NULL,
			position       INT NOT NULL,
			pages          INT NOT NULL DEFAULT 0,
			results        INT NOT NULL DEFAULT 0,
			new_candidates INT NOT NULL DEFAULT 0,
			duplicates     INT NOT NULL DEFAULT 0,
			duration_ms    BIGINT NOT NULL DEFAULT 0,
			error          TEXT NOT NULL DEFAULT '',
			issued_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at   TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			record_id      TEXT PRIMARY KEY,
			hit_count      INT NOT NULL DEFAULT 1,
			source_queries JSONB NOT NULL DEFAULT '[]',
			enriched       BOOLEAN NOT NULL DEFAULT FALSE,
			details        JSONB,
			score          INT,
			rationale      TEXT NOT NULL DEFAULT '',
			first_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq       BIGSERIAL PRIMARY KEY,
			run_id    UUID NOT NULL,
			run_seq   BIGINT NOT NULL,
			level     TEXT NOT NULL,
			name      TEXT NOT NULL,
			payload   JSONB,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events (run_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_run_seq ON events (run_id, run_seq)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_run ON queries (run_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
