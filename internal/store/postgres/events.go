package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lferraz/leadscout/internal/types"
)

// AppendEvent persists an event, assigning its global and per-run sequence
// numbers. The per-run sequence is derived from the current per-run maximum
// inside one statement; concurrent appends for the same run are serialized by
// the unique (run_id, run_seq) index, with the losing insert retried.
func (s *Store) AppendEvent(ctx context.Context, ev *types.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	for attempt := 1; ; attempt++ {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO events (run_id, run_seq, level, name, payload, timestamp)
			 VALUES ($1,
			         (SELECT COALESCE(MAX(run_seq), 0) + 1 FROM events WHERE run_id = $1),
			         $2, $3, $4, $5)
			 RETURNING seq, run_seq`,
			ev.RunID, ev.Level, ev.Name, payload, ev.Timestamp,
		).Scan(&ev.Seq, &ev.RunSeq)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && attempt < 5 { // unique_violation
			continue
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
}

// EventsSince returns persisted events for a run, plus global events, with
// seq > afterSeq in append order.
func (s *Store) EventsSince(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]types.Event, error) {
	query := `SELECT seq, run_seq, run_id, level, name, payload, timestamp
	          FROM events WHERE run_id IN ($1, $2) AND seq > $3 ORDER BY seq`
	args := []any{runID, uuid.Nil, afterSeq}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var ev types.Event
		var payload []byte
		if err := rows.Scan(&ev.Seq, &ev.RunSeq, &ev.RunID, &ev.Level,
			&ev.Name, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload != nil {
			_ = json.Unmarshal(payload, &ev.Payload)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
