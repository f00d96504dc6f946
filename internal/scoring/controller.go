// Package scoring implements the scoring phase: a single-flight background
// pass that submits enriched-but-unscored candidates to the language model in
// fixed-size batches and records the validated scores.
package scoring

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/llm"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// BatchScorer is the scoring capability.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, batch []types.Candidate) ([]llm.ScoreResult, error)
}

// Controller runs scoring passes. At most one pass runs at a time; a failed
// batch is abandoned and later batches still proceed, so re-triggering
// retries only what is still unscored.
type Controller struct {
	store         store.Store
	scorer        BatchScorer
	events        *events.Broadcaster
	batchSize     int
	highThreshold int

	guard        *semaphore.Weighted
	running      atomic.Bool
	doneBatches  atomic.Int64
	totalBatches atomic.Int64
}

// NewController wires the scoring phase.
func NewController(st store.Store, scorer BatchScorer, broadcaster *events.Broadcaster, batchSize, highThreshold int) *Controller {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Controller{
		store:         st,
		scorer:        scorer,
		events:        broadcaster,
		batchSize:     batchSize,
		highThreshold: highThreshold,
		guard:         semaphore.NewWeighted(1),
	}
}

// Trigger starts a pass over all enriched-but-unscored candidates unless one
// is already running. Returns the progress snapshot and whether a new pass
// started.
func (c *Controller) Trigger(ctx context.Context) (types.ScoringProgress, bool, error) {
	if !c.guard.TryAcquire(1) {
		progress, err := c.Progress(ctx)
		return progress, false, err
	}

	progress, err := c.Progress(ctx)
	if err != nil {
		c.guard.Release(1)
		return types.ScoringProgress{}, false, err
	}
	if progress.Pending == 0 {
		c.guard.Release(1)
		return progress, false, nil
	}

	c.running.Store(true)
	c.doneBatches.Store(0)
	c.totalBatches.Store(int64((progress.Pending + c.batchSize - 1) / c.batchSize))
	go func() {
		defer func() {
			c.running.Store(false)
			c.guard.Release(1)
		}()
		c.runPass(context.WithoutCancel(ctx))
	}()

	progress.Running = true
	progress.TotalBatches = int(c.totalBatches.Load())
	return progress, true, nil
}

// Progress returns the scoring counts at any time, during or after a pass.
func (c *Controller) Progress(ctx context.Context) (types.ScoringProgress, error) {
	scored, high, pending, err := c.store.ScoreCounts(ctx, c.highThreshold)
	if err != nil {
		return types.ScoringProgress{}, fmt.Errorf("failed to read score counts: %w", err)
	}
	return types.ScoringProgress{
		Running:        c.running.Load(),
		Scored:         scored,
		HighConfidence: high,
		Pending:        pending,
		DoneBatches:    int(c.doneBatches.Load()),
		TotalBatches:   int(c.totalBatches.Load()),
	}, nil
}

// runPass scores pending candidates batch by batch. A batch that fails
// validation or generation is abandoned whole; its candidates stay unscored.
func (c *Controller) runPass(ctx context.Context) {
	candidates, err := c.store.UnscoredCandidates(ctx)
	if err != nil {
		c.events.Emit(ctx, uuid.Nil, types.LevelError, types.EventScoreBatchError,
			map[string]any{"error": fmt.Sprintf("failed to list unscored candidates: %v", err)})
		return
	}

	total := int(c.totalBatches.Load())
	c.events.Emit(ctx, uuid.Nil, types.LevelInfo, types.EventScoreStart,
		map[string]any{"pending": len(candidates), "batches": total})

	scored, failedBatches := 0, 0
	for start := 0; start < len(candidates); start += c.batchSize {
		end := start + c.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		results, err := c.scorer.ScoreBatch(ctx, batch)
		if err != nil {
			failedBatches++
			c.doneBatches.Add(1)
			c.events.Emit(ctx, uuid.Nil, types.LevelWarn, types.EventScoreBatchError,
				map[string]any{"batch": c.doneBatches.Load(), "size": len(batch), "error": err.Error()})
			continue
		}

		for _, result := range results {
			if err := c.store.SetScore(ctx, result.RecordID, result.Score, result.Rationale); err != nil {
				c.events.Emit(ctx, uuid.Nil, types.LevelWarn, types.EventScoreBatchError,
					map[string]any{"record_id": result.RecordID, "error": err.Error()})
				continue
			}
			scored++
		}
		c.doneBatches.Add(1)
	}

	c.events.Emit(ctx, uuid.Nil, types.LevelInfo, types.EventScoreComplete,
		map[string]any{"scored": scored, "failed_batches": failedBatches})
}
