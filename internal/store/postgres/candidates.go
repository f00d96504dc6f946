package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// RecordDiscovery performs the merge-on-write dedup upsert. The run loop is
// the only writer of hit counts and source sets, so a read-then-write is
// sufficient here; enrichment and scoring touch disjoint columns.
func (s *Store) RecordDiscovery(ctx context.Context, recordID, queryText string, at time.Time) (bool, error) {
	var sourcesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT source_queries FROM candidates WHERE record_id = $1`, recordID,
	).Scan(&sourcesJSON)
	if err == pgx.ErrNoRows {
		sources, _ := json.Marshal([]string{queryText})
		_, err = s.pool.Exec(ctx,
			`INSERT INTO candidates (record_id, hit_count, source_queries, first_seen_at)
			 VALUES ($1, 1, $2, $3)`,
			recordID, sources, at,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert candidate: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up candidate: %w", err)
	}

	var sources []string
	if err := json.Unmarshal(sourcesJSON, &sources); err != nil {
		return false, fmt.Errorf("failed to decode source queries: %w", err)
	}
	for _, q := range sources {
		if q == queryText {
			return false, nil
		}
	}
	sources = append(sources, queryText)
	updated, _ := json.Marshal(sources)
	_, err = s.pool.Exec(ctx,
		`UPDATE candidates SET hit_count = hit_count + 1, source_queries = $1
		 WHERE record_id = $2`,
		updated, recordID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to merge candidate: %w", err)
	}
	return false, nil
}

// CandidateCount returns the number of unique candidates.
func (s *Store) CandidateCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return n, nil
}

// GetCandidate retrieves one candidate by record id.
func (s *Store) GetCandidate(ctx context.Context, recordID string) (*types.Candidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record_id, hit_count, source_queries, enriched, details, score, rationale, first_seen_at
		 FROM candidates WHERE record_id = $1`, recordID)
	c, err := scanCandidate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// ListCandidates returns candidates matching the filter, by hit count
// descending.
func (s *Store) ListCandidates(ctx context.Context, f store.CandidateFilter) ([]types.Candidate, error) {
	query := `SELECT record_id, hit_count, source_queries, enriched, details, score, rationale, first_seen_at
	          FROM candidates WHERE hit_count >= $1`
	args := []any{f.MinHits}
	argPos := 2

	if f.OnlyEnriched {
		query += ` AND enriched`
	}
	if f.RequireCoords {
		query += ` AND details ? 'latitude' AND details ? 'longitude'`
	}
	if f.MinScore != nil {
		query += fmt.Sprintf(` AND score >= $%d`, argPos)
		args = append(args, *f.MinScore)
		argPos++
	}
	query += ` ORDER BY hit_count DESC, first_seen_at`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argPos)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UnenrichedIDs returns record ids with the enrichment flag unset.
func (s *Store) UnenrichedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id FROM candidates WHERE NOT enriched ORDER BY first_seen_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unenriched candidates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkEnriched sets the enrichment flag and stores the fetched details.
func (s *Store) MarkEnriched(ctx context.Context, recordID string, d *types.CandidateDetails) error {
	details, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET enriched = TRUE, details = $1 WHERE record_id = $2`,
		details, recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark enriched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// EnrichmentCounts returns the enriched and pending candidate counts.
func (s *Store) EnrichmentCounts(ctx context.Context) (enriched, pending int, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE enriched), COUNT(*) FILTER (WHERE NOT enriched)
		 FROM candidates`).Scan(&enriched, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count enrichment: %w", err)
	}
	return enriched, pending, nil
}

// UnscoredCandidates returns enriched-but-unscored candidates.
func (s *Store) UnscoredCandidates(ctx context.Context) ([]types.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, hit_count, source_queries, enriched, details, score, rationale, first_seen_at
		 FROM candidates WHERE enriched AND score IS NULL ORDER BY first_seen_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored candidates: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetScore stores the score and rationale for a candidate.
func (s *Store) SetScore(ctx context.Context, recordID string, score int, rationale string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET score = $1, rationale = $2 WHERE record_id = $3`,
		score, rationale, recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to set score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ScoreCounts returns scored, high-confidence, and pending counts.
func (s *Store) ScoreCounts(ctx context.Context, highThreshold int) (scored, high, pending int, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE score IS NOT NULL),
		        COUNT(*) FILTER (WHERE score >= $1),
		        COUNT(*) FILTER (WHERE enriched AND score IS NULL)
		 FROM candidates`, highThreshold).Scan(&scored, &high, &pending)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count scores: %w", err)
	}
	return scored, high, pending, nil
}

func scanCandidate(row pgx.Row) (*types.Candidate, error) {
	var c types.Candidate
	var sources, details []byte
	if err := row.Scan(&c.RecordID, &c.HitCount, &sources, &c.Enriched,
		&details, &c.Score, &c.Rationale, &c.FirstSeenAt); err != nil {
		return nil, err
	}
	if sources != nil {
		_ = json.Unmarshal(sources, &c.SourceQueries)
	}
	if details != nil {
		c.Details = &types.CandidateDetails{}
		_ = json.Unmarshal(details, c.Details)
	}
	return &c, nil
}
