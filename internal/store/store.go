// Package store defines the persistence surface used by the discovery
// pipeline: runs, queries, the deduplicated candidate ledger, and the
// append-only event log. Implementations live in the memory and postgres
// subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/types"
)

// ErrNotFound is returned when a requested run or candidate does not exist.
var ErrNotFound = errors.New("not found")

// QueryStats holds the final counters written when a query completes.
type QueryStats struct {
	Pages      int
	Results    int
	New        int
	Duplicates int
	DurationMs int64
	Error      string
}

// CandidateFilter narrows ListCandidates. Zero values mean no filtering;
// Limit <= 0 means no limit.
type CandidateFilter struct {
	MinHits       int
	MinScore      *int
	OnlyEnriched  bool
	RequireCoords bool
	Limit         int
}

// Store is the durable surface the pipeline writes through. Discovery writes
// come from a single writer (the run controller loop); enrichment and scoring
// write disjoint fields and may run concurrently, so implementations only
// need per-operation atomicity.
type Store interface {
	// Runs.
	CreateRun(ctx context.Context, run *types.Run) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status types.RunStatus) error
	FinishRun(ctx context.Context, id uuid.UUID, status types.RunStatus, reason string, counters types.RunCounters) error
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)
	ListRuns(ctx context.Context) ([]types.Run, error)

	// Queries. CreateQuery assigns and returns the query ID.
	CreateQuery(ctx context.Context, q *types.Query) (int64, error)
	CompleteQuery(ctx context.Context, id int64, stats QueryStats) error
	ListQueries(ctx context.Context, runID uuid.UUID) ([]types.Query, error)

	// Candidate ledger. RecordDiscovery is the merge-on-write upsert: a new
	// record id inserts a candidate with hit count 1; a known id increments
	// the hit count and appends queryText only if that query is not already
	// in the candidate's source set. Returns true when the id was new.
	RecordDiscovery(ctx context.Context, recordID, queryText string, at time.Time) (bool, error)
	CandidateCount(ctx context.Context) (int, error)
	GetCandidate(ctx context.Context, recordID string) (*types.Candidate, error)
	ListCandidates(ctx context.Context, f CandidateFilter) ([]types.Candidate, error)

	// Enrichment.
	UnenrichedIDs(ctx context.Context) ([]string, error)
	MarkEnriched(ctx context.Context, recordID string, d *types.CandidateDetails) error
	EnrichmentCounts(ctx context.Context) (enriched, pending int, err error)

	// Scoring.
	UnscoredCandidates(ctx context.Context) ([]types.Candidate, error)
	SetScore(ctx context.Context, recordID string, score int, rationale string) error
	ScoreCounts(ctx context.Context, highThreshold int) (scored, high, pending int, err error)

	// Event log. AppendEvent assigns the global and per-run sequence numbers
	// on the event before returning. EventsSince returns persisted events for
	// a run, plus global (zero run ID) events, with Seq > afterSeq in append
	// order.
	AppendEvent(ctx context.Context, ev *types.Event) error
	EventsSince(ctx context.Context, runID uuid.UUID, afterSeq int64, limit int) ([]types.Event, error)
}
