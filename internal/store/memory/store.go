// Package memory provides an in-process Store implementation. It backs the
// one-shot CLI mode and the test suite; the postgres package provides the
// durable implementation with the same semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// Store keeps all tables in memory behind a single mutex.
type Store struct {
	mu sync.Mutex

	runs       map[uuid.UUID]*types.Run
	runOrder   []uuid.UUID
	queries    []*types.Query
	nextQuery  int64
	candidates map[string]*types.Candidate
	candOrder  []string
	events     []types.Event
	nextSeq    int64
	runSeqs    map[uuid.UUID]int64
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		runs:       make(map[uuid.UUID]*types.Run),
		candidates: make(map[string]*types.Candidate),
		runSeqs:    make(map[uuid.UUID]int64),
	}
}

// CreateRun stores a new run record.
func (s *Store) CreateRun(_ context.Context, run *types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	s.runOrder = append(s.runOrder, run.ID)
	return nil
}

// UpdateRunStatus changes the status of an existing run.
func (s *Store) UpdateRunStatus(_ context.Context, id uuid.UUID, status types.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Status = status
	return nil
}

// FinishRun records the terminal status, stop reason, and final counters.
func (s *Store) FinishRun(_ context.Context, id uuid.UUID, status types.RunStatus, reason string, counters types.RunCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.StopReason = reason
	run.Counters = counters
	run.FinishedAt = &now
	return nil
}

// GetRun returns a copy of the run, or store.ErrNotFound.
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(_ context.Context) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Run, 0, len(s.runOrder))
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		out = append(out, *s.runs[s.runOrder[i]])
	}
	return out, nil
}

// CreateQuery assigns an ID and stores the query record.
func (s *Store) CreateQuery(_ context.Context, q *types.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuery++
	q.ID = s.nextQuery
	cp := *q
	s.queries = append(s.queries, &cp)
	return q.ID, nil
}

// CompleteQuery fills in the result counters for an issued query.
func (s *Store) CompleteQuery(_ context.Context, id int64, stats store.QueryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queries {
		if q.ID == id {
			now := time.Now().UTC()
			q.Pages = stats.Pages
			q.Results = stats.Results
			q.NewCandidates = stats.New
			q.Duplicates = stats.Duplicates
			q.DurationMs = stats.DurationMs
			q.Error = stats.Error
			q.CompletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

// ListQueries returns the queries issued by a run in issue order.
func (s *Store) ListQueries(_ context.Context, runID uuid.UUID) ([]types.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Query
	for _, q := range s.queries {
		if q.RunID == runID {
			out = append(out, *q)
		}
	}
	return out, nil
}

// RecordDiscovery implements the merge-on-write dedup semantics. Re-discovery
// by a query already in the source set is a no-op, so repeated ids within one
// page never double-count.
func (s *Store) RecordDiscovery(_ context.Context, recordID, queryText string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[recordID]
	if !ok {
		s.candidates[recordID] = &types.Candidate{
			RecordID:      recordID,
			HitCount:      1,
			SourceQueries: []string{queryText},
			FirstSeenAt:   at,
		}
		s.candOrder = append(s.candOrder, recordID)
		return true, nil
	}
	for _, q := range c.SourceQueries {
		if q == queryText {
			return false, nil
		}
	}
	c.SourceQueries = append(c.SourceQueries, queryText)
	c.HitCount++
	return false, nil
}

// CandidateCount returns the number of unique candidates.
func (s *Store) CandidateCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates), nil
}

// GetCandidate returns a copy of one candidate by record id.
func (s *Store) GetCandidate(_ context.Context, recordID string) (*types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[recordID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := s.copyCandidate(c)
	return &cp, nil
}

func (s *Store) copyCandidate(c *types.Candidate) types.Candidate {
	cp := *c
	cp.SourceQueries = append([]string(nil), c.SourceQueries...)
	if c.Details != nil {
		d := *c.Details
		cp.Details = &d
	}
	if c.Score != nil {
		v := *c.Score
		cp.Score = &v
	}
	return cp
}

// ListCandidates returns candidates matching the filter, sorted by hit count
// descending and then by discovery order.
func (s *Store) ListCandidates(_ context.Context, f store.CandidateFilter) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Candidate
	for _, id := range s.candOrder {
		c := s.candidates[id]
		if c.HitCount < f.MinHits {
			continue
		}
		if f.OnlyEnriched && !c.Enriched {
			continue
		}
		if f.RequireCoords && (c.Details == nil || c.Details.Latitude == nil || c.Details.Longitude == nil) {
			continue
		}
		if f.MinScore != nil && (c.Score == nil || *c.Score < *f.MinScore) {
			continue
		}
		out = append(out, s.copyCandidate(c))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].HitCount > out[j].HitCount })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UnenrichedIDs returns record ids with the enrichment flag unset, in
// discovery order.
func (s *Store) UnenrichedIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.candOrder {
		if !s.candidates[id].Enriched {
			out = append(out, id)
		}
	}
	return out, nil
}

// MarkEnriched sets the enrichment flag and stores the fetched details.
func (s *Store) MarkEnriched(_ context.Context, recordID string, d *types.CandidateDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[recordID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *d
	c.Details = &cp
	c.Enriched = true
	return nil
}

// EnrichmentCounts returns the enriched and pending candidate counts.
func (s *Store) EnrichmentCounts(_ context.Context) (enriched, pending int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.Enriched {
			enriched++
		} else {
			pending++
		}
	}
	return enriched, pending, nil
}

// UnscoredCandidates returns enriched-but-unscored candidates in discovery
// order.
func (s *Store) UnscoredCandidates(_ context.Context) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Candidate
	for _, id := range s.candOrder {
		c := s.candidates[id]
		if c.Enriched && c.Score == nil {
			out = append(out, s.copyCandidate(c))
		}
	}
	return out, nil
}

// SetScore stores the score and rationale for a candidate.
func (s *Store) SetScore(_ context.Context, recordID string, score int, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[recordID]
	if !ok {
		return store.ErrNotFound
	}
	c.Score = &score
	c.Rationale = rationale
	return nil
}

// ScoreCounts returns scored, high-confidence, and pending (enriched but
// unscored) counts.
func (s *Store) ScoreCounts(_ context.Context, highThreshold int) (scored, high, pending int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		switch {
		case c.Score != nil:
			scored++
			if *c.Score >= highThreshold {
				high++
			}
		case c.Enriched:
			pending++
		}
	}
	return scored, high, pending, nil
}

// AppendEvent assigns sequence numbers and appends the event.
func (s *Store) AppendEvent(_ context.Context, ev *types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	ev.Seq = s.nextSeq
	s.runSeqs[ev.RunID]++
	ev.RunSeq = s.runSeqs[ev.RunID]
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.events = append(s.events, *ev)
	return nil
}

// EventsSince returns persisted events for a run with Seq > afterSeq.
func (s *Store) EventsSince(_ context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, ev := range s.events {
		if ev.RunID != runID && ev.RunID != uuid.Nil {
			continue
		}
		if ev.Seq <= afterSeq {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
