package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/places"
	"github.com/lferraz/leadscout/internal/ratelimit"
	"github.com/lferraz/leadscout/internal/store/memory"
	"github.com/lferraz/leadscout/internal/types"
)

// fakeDetailer returns canned details per record id; ids in fail return that
// error instead.
type fakeDetailer struct {
	mu      sync.Mutex
	details map[string]*types.CandidateDetails
	fail    map[string]error
	block   chan struct{} // when set, every call waits until closed
	calls   map[string]int
}

func (f *fakeDetailer) FetchDetails(_ context.Context, id string) (*types.CandidateDetails, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	f.mu.Unlock()
	if err, ok := f.fail[id]; ok {
		return nil, err
	}
	return f.details[id], nil
}

func newTestController(detailer Detailer) (*Controller, *memory.Store) {
	st := memory.New()
	broadcaster := events.NewBroadcaster(st)
	gate := ratelimit.NewGate(10000, 100)
	return NewController(st, gate, detailer, broadcaster, 1, time.Millisecond), st
}

func seed(t *testing.T, st *memory.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := st.RecordDiscovery(context.Background(), id, "q", time.Now().UTC())
		require.NoError(t, err)
	}
}

func waitIdle(t *testing.T, c *Controller) types.EnrichmentProgress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		progress, err := c.Progress(context.Background())
		require.NoError(t, err)
		if !progress.Running {
			return progress
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("enrichment pass did not finish")
	return types.EnrichmentProgress{}
}

func TestTrigger_EnrichesAllPending(t *testing.T) {
	detailer := &fakeDetailer{details: map[string]*types.CandidateDetails{
		"a": {Name: "Padaria A"},
		"b": {Name: "Mercado B"},
	}}
	c, st := newTestController(detailer)
	seed(t, st, "a", "b")

	progress, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, 2, progress.Total)

	final := waitIdle(t, c)
	assert.Equal(t, 2, final.Enriched)
	assert.Equal(t, 0, final.Pending)

	got, err := st.GetCandidate(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, got.Enriched)
	assert.Equal(t, "Padaria A", got.Details.Name)
}

func TestTrigger_NothingPending(t *testing.T) {
	c, _ := newTestController(&fakeDetailer{})

	progress, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 0, progress.Total)
}

func TestTrigger_SingleFlight(t *testing.T) {
	detailer := &fakeDetailer{
		details: map[string]*types.CandidateDetails{"a": {Name: "A"}},
		block:   make(chan struct{}),
	}
	c, st := newTestController(detailer)
	seed(t, st, "a")

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	// A second trigger while the pass runs reports progress, starts nothing.
	progress, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.True(t, progress.Running)

	close(detailer.block)
	waitIdle(t, c)

	detailer.mu.Lock()
	defer detailer.mu.Unlock()
	assert.Equal(t, 1, detailer.calls["a"], "the candidate is fetched once, not once per trigger")
}

func TestTrigger_FailedCandidateIsSkipped(t *testing.T) {
	detailer := &fakeDetailer{
		details: map[string]*types.CandidateDetails{"a": {Name: "A"}, "c": {Name: "C"}},
		fail:    map[string]error{"b": places.ErrNotFound},
	}
	c, st := newTestController(detailer)
	seed(t, st, "a", "b", "c")

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	final := waitIdle(t, c)
	assert.Equal(t, 2, final.Enriched, "the failing candidate does not block the rest")
	assert.Equal(t, 1, final.Pending)

	// The skip left a trace in the event log.
	evs, err := st.EventsSince(context.Background(), uuid.Nil, 0, 100)
	require.NoError(t, err)
	var skips int
	for _, ev := range evs {
		if ev.Name == types.EventEnrichSkip {
			skips++
		}
	}
	assert.Equal(t, 1, skips)
}

func TestFetchWithRetry_TransientRetries(t *testing.T) {
	// All calls fail transiently; with 3 retries the candidate is fetched
	// three times and then skipped.
	detailer := &fakeDetailer{
		fail: map[string]error{"a": &places.TransientError{Op: "details", Cause: context.DeadlineExceeded}},
	}
	st := memory.New()
	broadcaster := events.NewBroadcaster(st)
	c := NewController(st, ratelimit.NewGate(10000, 100), detailer, broadcaster, 3, time.Millisecond)
	seed(t, st, "a")

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	final := waitIdle(t, c)
	assert.Equal(t, 0, final.Enriched)

	detailer.mu.Lock()
	defer detailer.mu.Unlock()
	assert.Equal(t, 3, detailer.calls["a"])
}
