package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/llm"
	"github.com/lferraz/leadscout/internal/store/memory"
	"github.com/lferraz/leadscout/internal/types"
)

// fakeScorer scores every candidate with a fixed value; batches whose first
// record id is in failFirst return an error instead.
type fakeScorer struct {
	mu        sync.Mutex
	score     int
	failFirst map[string]error
	batches   [][]string
}

func (f *fakeScorer) ScoreBatch(_ context.Context, batch []types.Candidate) ([]llm.ScoreResult, error) {
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.RecordID
	}
	f.mu.Lock()
	f.batches = append(f.batches, ids)
	var failErr error
	if len(batch) > 0 {
		failErr = f.failFirst[batch[0].RecordID]
	}
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	out := make([]llm.ScoreResult, len(batch))
	for i, c := range batch {
		out[i] = llm.ScoreResult{RecordID: c.RecordID, Score: f.score, Rationale: "test"}
	}
	return out, nil
}

func newTestController(scorer BatchScorer, batchSize int) (*Controller, *memory.Store) {
	st := memory.New()
	broadcaster := events.NewBroadcaster(st)
	return NewController(st, scorer, broadcaster, batchSize, 75), st
}

func seedEnriched(t *testing.T, st *memory.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		_, err := st.RecordDiscovery(ctx, id, "q", time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, st.MarkEnriched(ctx, id, &types.CandidateDetails{Name: id}))
	}
}

func waitIdle(t *testing.T, c *Controller) types.ScoringProgress {
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
	t.Fatal("scoring pass did not finish")
	return types.ScoringProgress{}
}

func TestTrigger_ScoresInBatches(t *testing.T) {
	scorer := &fakeScorer{score: 80}
	c, st := newTestController(scorer, 2)
	seedEnriched(t, st, "a", "b", "c")

	progress, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, 2, progress.TotalBatches, "3 candidates at batch size 2")

	final := waitIdle(t, c)
	assert.Equal(t, 3, final.Scored)
	assert.Equal(t, 3, final.HighConfidence)
	assert.Equal(t, 0, final.Pending)
	assert.Equal(t, 2, final.DoneBatches)

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, scorer.batches)

	got, err := st.GetCandidate(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 80, *got.Score)
	assert.Equal(t, "test", got.Rationale)
}

func TestTrigger_NothingToScore(t *testing.T) {
	c, st := newTestController(&fakeScorer{score: 50}, 2)

	// Unenriched candidates are not scoreable.
	_, err := st.RecordDiscovery(context.Background(), "raw", "q", time.Now().UTC())
	require.NoError(t, err)

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
}

func TestTrigger_BadBatchIsAbandoned(t *testing.T) {
	scorer := &fakeScorer{
		score:     60,
		failFirst: map[string]error{"a": &llm.ShapeMismatchError{Want: 2, Got: 1}},
	}
	c, st := newTestController(scorer, 2)
	seedEnriched(t, st, "a", "b", "c", "d")

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	final := waitIdle(t, c)
	assert.Equal(t, 2, final.Scored, "the second batch proceeds after the first fails")
	assert.Equal(t, 2, final.Pending, "the failed batch's candidates stay unscored")

	for _, id := range []string{"a", "b"} {
		got, err := st.GetCandidate(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, got.Score, "no result from a failed batch may be applied")
	}

	evs, err := st.EventsSince(context.Background(), uuid.Nil, 0, 100)
	require.NoError(t, err)
	var batchErrors int
	for _, ev := range evs {
		if ev.Name == types.EventScoreBatchError {
			batchErrors++
		}
	}
	assert.Equal(t, 1, batchErrors)
}

func TestTrigger_SecondPassScoresLeftovers(t *testing.T) {
	scorer := &fakeScorer{
		score:     60,
		failFirst: map[string]error{"a": &llm.ShapeMismatchError{Want: 2, Got: 0}},
	}
	c, st := newTestController(scorer, 2)
	seedEnriched(t, st, "a", "b")

	_, _, err := c.Trigger(context.Background())
	require.NoError(t, err)
	waitIdle(t, c)

	// Retrying after clearing the failure scores the leftover batch.
	scorer.mu.Lock()
	scorer.failFirst = nil
	scorer.mu.Unlock()

	_, started, err := c.Trigger(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	final := waitIdle(t, c)
	assert.Equal(t, 2, final.Scored)
	assert.Equal(t, 0, final.Pending)
}
