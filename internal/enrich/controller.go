// Package enrich implements the enrichment phase: a single-flight background
// pass that fetches details for every unenriched candidate through the shared
// rate limiter. Enrichment is independent of run lifecycle.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/places"
	"github.com/lferraz/leadscout/internal/ratelimit"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// Detailer is the detail capability.
type Detailer interface {
	FetchDetails(ctx context.Context, id string) (*types.CandidateDetails, error)
}

// Controller runs enrichment passes. At most one pass runs at a time;
// concurrent triggers observe the in-progress pass.
type Controller struct {
	store    store.Store
	gate     *ratelimit.Gate
	detailer Detailer
	events   *events.Broadcaster
	retries  int
	backoff  time.Duration

	guard   *semaphore.Weighted
	running atomic.Bool
}

// NewController wires the enrichment phase.
func NewController(st store.Store, gate *ratelimit.Gate, detailer Detailer, broadcaster *events.Broadcaster, retries int, backoff time.Duration) *Controller {
	if retries < 1 {
		retries = 1
	}
	if backoff == 0 {
		backoff = time.Second
	}
	return &Controller{
		store:    st,
		gate:     gate,
		detailer: detailer,
		events:   broadcaster,
		retries:  retries,
		backoff:  backoff,
		guard:    semaphore.NewWeighted(1),
	}
}

// Trigger starts a pass over all pending candidates unless one is already
// running. Returns the progress snapshot and whether a new pass started.
// The pass outlives the caller's context cancellation; each unit of work is
// idempotent to retry on a later pass.
func (c *Controller) Trigger(ctx context.Context) (types.EnrichmentProgress, bool, error) {
	if !c.guard.TryAcquire(1) {
		progress, err := c.Progress(ctx)
		return progress, false, err
	}

	progress, err := c.Progress(ctx)
	if err != nil {
		c.guard.Release(1)
		return types.EnrichmentProgress{}, false, err
	}
	if progress.Pending == 0 {
		c.guard.Release(1)
		return progress, false, nil
	}

	c.running.Store(true)
	go func() {
		defer func() {
			c.running.Store(false)
			c.guard.Release(1)
		}()
		c.runPass(context.WithoutCancel(ctx))
	}()

	progress.Running = true
	return progress, true, nil
}

// Progress returns the enrichment counts at any time, during or after a pass.
func (c *Controller) Progress(ctx context.Context) (types.EnrichmentProgress, error) {
	enriched, pending, err := c.store.EnrichmentCounts(ctx)
	if err != nil {
		return types.EnrichmentProgress{}, fmt.Errorf("failed to read enrichment counts: %w", err)
	}
	return types.EnrichmentProgress{
		Running:  c.running.Load(),
		Enriched: enriched,
		Pending:  pending,
		Total:    enriched + pending,
	}, nil
}

// runPass enriches every pending candidate. Individual failures skip the
// candidate and continue; the pass itself never aborts early.
func (c *Controller) runPass(ctx context.Context) {
	ids, err := c.store.UnenrichedIDs(ctx)
	if err != nil {
		c.events.Emit(ctx, uuid.Nil, types.LevelError, types.EventEnrichSkip,
			map[string]any{"error": fmt.Sprintf("failed to list pending candidates: %v", err)})
		return
	}

	c.events.Emit(ctx, uuid.Nil, types.LevelInfo, types.EventEnrichStart,
		map[string]any{"pending": len(ids)})

	enriched, skipped := 0, 0
	for _, id := range ids {
		details, err := c.fetchWithRetry(ctx, id)
		if err != nil {
			skipped++
			c.events.Emit(ctx, uuid.Nil, types.LevelWarn, types.EventEnrichSkip,
				map[string]any{"record_id": id, "error": err.Error()})
			continue
		}
		if err := c.store.MarkEnriched(ctx, id, details); err != nil {
			skipped++
			c.events.Emit(ctx, uuid.Nil, types.LevelWarn, types.EventEnrichSkip,
				map[string]any{"record_id": id, "error": err.Error()})
			continue
		}
		enriched++
	}

	c.events.Emit(ctx, uuid.Nil, types.LevelInfo, types.EventEnrichComplete,
		map[string]any{"enriched": enriched, "skipped": skipped})
}

// fetchWithRetry calls the detail capability through the shared gate,
// retrying transient failures. Not-found ids and retry exhaustion skip the
// candidate only.
func (c *Controller) fetchWithRetry(ctx context.Context, id string) (*types.CandidateDetails, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.gate.Wait(ctx); err != nil {
			return nil, err
		}
		details, err := c.detailer.FetchDetails(ctx, id)
		if err == nil {
			return details, nil
		}
		if errors.Is(err, places.ErrNotFound) || !places.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("detail retries exhausted: %w", lastErr)
}
