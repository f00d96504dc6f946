package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *types.Run) error {
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, seed_count, counters, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Status, run.SeedCount, counters, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRunStatus changes the status of an existing run.
func (s *Store) UpdateRunStatus(ctx context.Context, id uuid.UUID, status types.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FinishRun records the terminal status, stop reason, and final counters.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, status types.RunStatus, reason string, counters types.RunCounters) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stop_reason = $2, counters = $3, finished_at = NOW()
		 WHERE id = $4`,
		status, reason, countersJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, stop_reason, seed_count, counters, started_at, finished_at
		 FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]types.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, stop_reason, seed_count, counters, started_at, finished_at
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*types.Run, error) {
	var run types.Run
	var counters []byte
	if err := row.Scan(&run.ID, &run.Status, &run.StopReason, &run.SeedCount,
		&counters, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	if counters != nil {
		_ = json.Unmarshal(counters, &run.Counters)
	}
	return &run, nil
}
