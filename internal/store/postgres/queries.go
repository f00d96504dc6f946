package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// CreateQuery inserts an issued query and returns its ID.
func (s *Store) CreateQuery(ctx context.Context, q *types.Query) (int64, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO queries (run_id, text, origin, position, issued_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.RunID, q.Text, q.Origin, q.Position, q.IssuedAt,
	).Scan(&q.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create query: %w", err)
	}
	return q.ID, nil
}

// CompleteQuery fills in the result counters for an issued query.
func (s *Store) CompleteQuery(ctx context.Context, id int64, stats store.QueryStats) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queries
		 SET pages = $1, results = $2, new_candidates = $3, duplicates = $4,
		     duration_ms = $5, error = $6, completed_at = NOW()
		 WHERE id = $7`,
		stats.Pages, stats.Results, stats.New, stats.Duplicates,
		stats.DurationMs, stats.Error, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListQueries returns the queries issued by a run in issue order.
func (s *Store) ListQueries(ctx context.Context, runID uuid.UUID) ([]types.Query, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, text, origin, position, pages, results,
		        new_candidates, duplicates, duration_ms, error, issued_at, completed_at
		 FROM queries WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var out []types.Query
	for rows.Next() {
		var q types.Query
		if err := rows.Scan(&q.ID, &q.RunID, &q.Text, &q.Origin, &q.Position,
			&q.Pages, &q.Results, &q.NewCandidates, &q.Duplicates,
			&q.DurationMs, &q.Error, &q.IssuedAt, &q.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
