// Package pipeline implements the discovery run engine: the run state
// machine, rate-limited query scheduling with dynamic expansion, the
// rolling-window novelty stopping policy, and dedup bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/llm"
	"github.com/lferraz/leadscout/internal/places"
	"github.com/lferraz/leadscout/internal/ratelimit"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// ErrRunActive is returned by Start while a run is in progress.
var ErrRunActive = errors.New("run already active")

// ErrRunNotActive is returned by Stop for a run that is not the active one.
var ErrRunNotActive = errors.New("run not active")

// Searcher is the paginated search capability.
type Searcher interface {
	Search(ctx context.Context, query, pageToken string) (*places.Page, error)
}

// Expander is the query-expansion capability.
type Expander interface {
	ExpandQueries(ctx context.Context, summary llm.ExpandSummary) ([]string, error)
}

// Config holds the run loop knobs.
type Config struct {
	SeedQueries      []string
	MaxQueriesPerRun int
	MaxCandidates    int
	NoveltyWindow    int
	NoveltyFloor     float64
	MaxPagesPerQuery int
	ExpandEvery      int
	SearchRetries    int
	RetryBackoff     time.Duration
}

// runState is the in-memory state of the active run, owned by the loop
// goroutine. Status queries read the snapshot fields under the controller
// mutex.
type runState struct {
	run           *types.Run
	scheduler     *Scheduler
	novelty       *NoveltyTracker
	recentQueries []string
	stopRequested bool
}

// Controller owns the run lifecycle. At most one run is active per process;
// the single-run lock lives for the controller's lifetime and is released on
// every terminal transition.
type Controller struct {
	cfg      Config
	store    store.Store
	gate     *ratelimit.Gate
	searcher Searcher
	expander Expander // nil disables expansion
	events   *events.Broadcaster
	policy   StopPolicy
	runLock  *semaphore.Weighted

	mu     sync.Mutex
	active *runState
}

// NewController wires the run engine.
func NewController(cfg Config, st store.Store, gate *ratelimit.Gate, searcher Searcher, expander Expander, broadcaster *events.Broadcaster) *Controller {
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.ExpandEvery <= 0 {
		cfg.ExpandEvery = 25
	}
	return &Controller{
		cfg:      cfg,
		store:    st,
		gate:     gate,
		searcher: searcher,
		expander: expander,
		events:   broadcaster,
		policy: StopPolicy{
			MaxQueries:    cfg.MaxQueriesPerRun,
			MaxCandidates: cfg.MaxCandidates,
			NoveltyFloor:  cfg.NoveltyFloor,
		},
		runLock: semaphore.NewWeighted(1),
	}
}

// Start creates a new run and launches its loop, or returns ErrRunActive.
// The loop runs on ctx; cancelling it aborts the run between capability
// calls.
func (c *Controller) Start(ctx context.Context) (*types.Run, error) {
	if !c.runLock.TryAcquire(1) {
		return nil, ErrRunActive
	}

	run := &types.Run{
		ID:        uuid.New(),
		Status:    types.StatusRunning,
		SeedCount: len(c.cfg.SeedQueries),
		StartedAt: time.Now().UTC(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		c.runLock.Release(1)
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	state := &runState{
		run:       run,
		scheduler: NewScheduler(c.cfg.SeedQueries),
		novelty:   NewNoveltyTracker(c.cfg.NoveltyWindow),
	}
	c.mu.Lock()
	c.active = state
	c.mu.Unlock()

	c.events.Emit(ctx, run.ID, types.LevelInfo, types.EventRunStart, map[string]any{
		"seed_queries":   len(c.cfg.SeedQueries),
		"max_queries":    c.cfg.MaxQueriesPerRun,
		"max_candidates": c.cfg.MaxCandidates,
		"novelty_floor":  c.cfg.NoveltyFloor,
	})

	go c.loop(ctx, state)

	snapshot := *run
	return &snapshot, nil
}

// Stop requests a cooperative stop of the active run. The in-flight query
// finishes all its pages before the run transitions to stopped. Stopping an
// already-stopping run is a no-op; stopping a non-active run is an error.
func (c *Controller) Stop(ctx context.Context, runID uuid.UUID) error {
	c.mu.Lock()
	if c.active == nil || c.active.run.ID != runID {
		c.mu.Unlock()
		return ErrRunNotActive
	}
	if c.active.stopRequested {
		c.mu.Unlock()
		return nil
	}
	c.active.stopRequested = true
	c.active.run.Status = types.StatusStopping
	c.mu.Unlock()

	if err := c.store.UpdateRunStatus(ctx, runID, types.StatusStopping); err != nil {
		return fmt.Errorf("failed to persist stopping status: %w", err)
	}
	c.events.Emit(ctx, runID, types.LevelWarn, types.EventStopping,
		map[string]any{"reason": ReasonUserRequested})
	return nil
}

// Status returns the live snapshot for the active run, or the persisted
// record for a finished one.
func (c *Controller) Status(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	c.mu.Lock()
	if c.active != nil && c.active.run.ID == runID {
		snapshot := *c.active.run
		c.mu.Unlock()
		return &snapshot, nil
	}
	c.mu.Unlock()
	return c.store.GetRun(ctx, runID)
}

// ActiveRunID returns the id of the running run, or uuid.Nil.
func (c *Controller) ActiveRunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return uuid.Nil
	}
	return c.active.run.ID
}

// loop is the run body: one iteration per query until a stop condition or an
// unrecoverable error.
func (c *Controller) loop(ctx context.Context, state *runState) {
	for {
		if c.stopRequested(state) {
			c.finish(ctx, state, types.StatusStopped, ReasonUserRequested)
			return
		}
		if err := ctx.Err(); err != nil {
			c.finish(ctx, state, types.StatusStopped, "cancelled")
			return
		}

		decision := c.evaluatePolicy(ctx, state)
		if decision.Stop {
			c.events.Emit(ctx, state.run.ID, types.LevelInfo, types.EventStopping,
				map[string]any{"reason": decision.Reason})
			c.finish(ctx, state, types.StatusDone, decision.Reason)
			return
		}

		text, origin, err := state.scheduler.Next()
		if err != nil {
			// Policy already checked exhaustion; only reachable if seeds
			// were empty to begin with.
			c.finish(ctx, state, types.StatusDone, ReasonExhausted)
			return
		}

		if err := c.runQuery(ctx, state, text, origin); err != nil {
			c.finish(ctx, state, types.StatusFailed, fmt.Sprintf("error: %v", err))
			return
		}

		c.maybeExpand(ctx, state)
	}
}

// runQuery executes one query end to end: rate-limited page fetches, ledger
// upserts, counter updates, and the completion event. A returned error is
// fatal to the run.
func (c *Controller) runQuery(ctx context.Context, state *runState, text string, origin types.QueryOrigin) error {
	run := state.run
	query := &types.Query{
		RunID:    run.ID,
		Text:     text,
		Origin:   origin,
		Position: state.scheduler.Position() - 1,
		IssuedAt: time.Now().UTC(),
	}
	queryID, err := c.store.CreateQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	started := time.Now()
	var pages, total, newCount, dupCount int
	pageToken := ""

	for page := 0; page < c.cfg.MaxPagesPerQuery; page++ {
		if err := c.gate.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		result, err := c.searchWithRetry(ctx, text, pageToken)
		if err != nil {
			elapsed := time.Since(started).Milliseconds()
			_ = c.store.CompleteQuery(ctx, queryID, store.QueryStats{
				Pages: pages, Results: total, New: newCount, Duplicates: dupCount,
				DurationMs: elapsed, Error: err.Error(),
			})
			c.events.Emit(ctx, run.ID, types.LevelError, types.EventSearchError,
				map[string]any{"query": text, "error": err.Error(), "pages_fetched": pages})
			return err
		}

		pages++
		for _, id := range result.IDs {
			inserted, err := c.store.RecordDiscovery(ctx, id, text, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("failed to record discovery: %w", err)
			}
			total++
			if inserted {
				newCount++
			} else {
				dupCount++
			}
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	elapsed := time.Since(started).Milliseconds()
	if err := c.store.CompleteQuery(ctx, queryID, store.QueryStats{
		Pages: pages, Results: total, New: newCount, Duplicates: dupCount,
		DurationMs: elapsed,
	}); err != nil {
		return fmt.Errorf("failed to complete query: %w", err)
	}

	c.mu.Lock()
	run.Counters.QueriesIssued++
	run.Counters.PagesFetched += pages
	run.Counters.ResultsSeen += total
	run.Counters.CandidatesFound += newCount
	run.Counters.DuplicatesFound += dupCount
	counters := run.Counters
	c.mu.Unlock()

	state.novelty.Record(newCount, total)
	state.recentQueries = append(state.recentQueries, text)
	if len(state.recentQueries) > 40 {
		state.recentQueries = state.recentQueries[1:]
	}

	c.events.Emit(ctx, run.ID, types.LevelInfo, types.EventQueryCompleted, map[string]any{
		"query":            text,
		"pages":            pages,
		"results":          total,
		"new":              newCount,
		"duplicates":       dupCount,
		"ms":               elapsed,
		"queries_run":      counters.QueriesIssued,
		"candidates_total": counters.CandidatesFound,
	})
	return nil
}

// searchWithRetry fetches one page, retrying transient failures with backoff.
// Fatal errors and retry exhaustion are returned to the caller, which fails
// the run: a poisoned query cannot be skipped silently.
func (c *Controller) searchWithRetry(ctx context.Context, query, pageToken string) (*places.Page, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.SearchRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		page, err := c.searcher.Search(ctx, query, pageToken)
		if err == nil {
			return page, nil
		}
		if !places.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search retries exhausted: %w", lastErr)
}

// maybeExpand invokes the expansion capability every ExpandEvery completed
// queries. Expansion is best-effort and never fatal.
func (c *Controller) maybeExpand(ctx context.Context, state *runState) {
	if c.expander == nil {
		return
	}
	c.mu.Lock()
	queriesRun := state.run.Counters.QueriesIssued
	c.mu.Unlock()
	if queriesRun == 0 || queriesRun%c.cfg.ExpandEvery != 0 {
		return
	}

	candidates, err := c.store.CandidateCount(ctx)
	if err != nil {
		candidates = 0
	}
	suggestions, err := c.expander.ExpandQueries(ctx, llm.ExpandSummary{
		QueriesRun:     queriesRun,
		CandidateCount: candidates,
		RecentQueries:  state.recentQueries,
	})
	if err != nil {
		c.events.Emit(ctx, state.run.ID, types.LevelWarn, types.EventExpandError,
			map[string]any{"error": err.Error()})
		return
	}

	added := state.scheduler.Append(suggestions)
	c.events.Emit(ctx, state.run.ID, types.LevelInfo, types.EventExpandDone,
		map[string]any{"suggested": len(suggestions), "added": added})
}

func (c *Controller) evaluatePolicy(ctx context.Context, state *runState) Decision {
	candidates, err := c.store.CandidateCount(ctx)
	if err != nil {
		candidates = 0
	}
	c.mu.Lock()
	queriesRun := state.run.Counters.QueriesIssued
	c.mu.Unlock()
	return c.policy.Evaluate(PolicyInputs{
		SchedulerEmpty: !state.scheduler.HasNext(),
		QueriesRun:     queriesRun,
		CandidateCount: candidates,
		WindowFull:     state.novelty.Full(),
		NoveltyRate:    state.novelty.Rate(),
	})
}

func (c *Controller) stopRequested(state *runState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return state.stopRequested
}

// finish records the terminal event, persists the final counters, and
// releases the single-run lock so a new start request can be accepted.
func (c *Controller) finish(ctx context.Context, state *runState, status types.RunStatus, reason string) {
	c.mu.Lock()
	state.run.Status = status
	state.run.StopReason = reason
	counters := state.run.Counters
	c.mu.Unlock()

	name := types.EventRunComplete
	level := types.LevelInfo
	switch status {
	case types.StatusStopped:
		name = types.EventRunStopped
		level = types.LevelWarn
	case types.StatusFailed:
		name = types.EventRunFailed
		level = types.LevelError
	}
	c.events.Emit(ctx, state.run.ID, level, name, map[string]any{
		"reason":     reason,
		"queries":    counters.QueriesIssued,
		"results":    counters.ResultsSeen,
		"candidates": counters.CandidatesFound,
	})

	if err := c.store.FinishRun(ctx, state.run.ID, status, reason, counters); err != nil {
		c.events.Emit(ctx, state.run.ID, types.LevelError, types.EventRunFailed,
			map[string]any{"error": fmt.Sprintf("failed to persist terminal state: %v", err)})
	}

	c.mu.Lock()
	now := time.Now().UTC()
	state.run.FinishedAt = &now
	c.active = nil
	c.mu.Unlock()
	c.runLock.Release(1)
}
