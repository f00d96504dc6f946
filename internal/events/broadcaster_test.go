package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lferraz/leadscout/internal/store/memory"
	"github.com/lferraz/leadscout/internal/types"
)

func collect(t *testing.T, sub *Subscription, n int) []types.Event {
	t.Helper()
	out := make([]types.Event, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("stream closed after %d of %d events", len(out), n)
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestPublish_PersistsAndAssignsSequence(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runID, Name: "A", Level: types.LevelInfo}))
	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runID, Name: "B", Level: types.LevelInfo}))

	evs, err := st.EventsSince(context.Background(), runID, 0, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "A", evs[0].Name)
	assert.Less(t, evs[0].Seq, evs[1].Seq)
}

func TestSubscribe_ReplaysFromCursor(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runID, Name: name, Level: types.LevelInfo}))
	}

	sub := b.Subscribe(context.Background(), runID, 1)
	defer sub.Close()

	evs := collect(t, sub, 3)
	assert.Equal(t, "A", evs[0].Name)
	assert.Equal(t, "B", evs[1].Name)
	assert.Equal(t, "C", evs[2].Name)

	// A later cursor skips what the client already has.
	sub2 := b.Subscribe(context.Background(), runID, evs[1].Seq+1)
	defer sub2.Close()
	evs2 := collect(t, sub2, 1)
	assert.Equal(t, "C", evs2[0].Name)
}

func TestSubscribe_SpliceHasNoGapsOrDuplicates(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	// History before the subscriber arrives.
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runID, Name: "hist", Level: types.LevelInfo}))
	}

	sub := b.Subscribe(context.Background(), runID, 1)
	defer sub.Close()

	// Live events racing the replay.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_ = b.Publish(context.Background(), types.Event{RunID: runID, Name: "live", Level: types.LevelInfo})
		}
	}()

	evs := collect(t, sub, 40)
	<-done

	var last int64
	for i, ev := range evs {
		assert.Equal(t, last+1, ev.Seq, "event %d out of sequence", i)
		last = ev.Seq
	}
}

func TestPublish_ConcurrentPublishersDeliverEverything(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	sub := b.Subscribe(context.Background(), runID, 1)
	defer sub.Close()

	// Many goroutines emitting for the same run: delivery must stay
	// complete and in sequence order even when publishers race.
	const publishers, perPublisher = 16, 50
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Emit(context.Background(), runID, types.LevelInfo, "tick", nil)
			}
		}()
	}

	evs := collect(t, sub, publishers*perPublisher)
	wg.Wait()

	var last int64
	for i, ev := range evs {
		assert.Equal(t, last+1, ev.Seq, "event %d out of sequence", i)
		last = ev.Seq
	}
}

func TestPublish_GlobalEventsReachEverySubscriber(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runA, runB := uuid.New(), uuid.New()

	subA := b.Subscribe(context.Background(), runA, 1)
	defer subA.Close()
	subB := b.Subscribe(context.Background(), runB, 1)
	defer subB.Close()

	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: uuid.Nil, Name: "global", Level: types.LevelInfo}))

	assert.Equal(t, "global", collect(t, subA, 1)[0].Name)
	assert.Equal(t, "global", collect(t, subB, 1)[0].Name)
}

func TestSubscribe_ReplayIncludesGlobalEvents(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runID, Name: "mine", Level: types.LevelInfo}))
	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: uuid.Nil, Name: "global", Level: types.LevelInfo}))

	sub := b.Subscribe(context.Background(), runID, 1)
	defer sub.Close()

	evs := collect(t, sub, 2)
	assert.Equal(t, "mine", evs[0].Name)
	assert.Equal(t, "global", evs[1].Name)
}

func TestSubscribe_OnlyMatchingRun(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runA, runB := uuid.New(), uuid.New()

	sub := b.Subscribe(context.Background(), runA, 1)
	defer sub.Close()

	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runB, Name: "other", Level: types.LevelInfo}))
	require.NoError(t, b.Publish(context.Background(), types.Event{RunID: runA, Name: "mine", Level: types.LevelInfo}))

	evs := collect(t, sub, 1)
	assert.Equal(t, "mine", evs[0].Name)
}

func TestSubscription_CtxCancelEndsStream(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)
	runID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, runID, 1)
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return // closed as expected
			}
		case <-timeout:
			t.Fatal("stream did not close after context cancellation")
		}
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	st := memory.New()
	b := NewBroadcaster(st)

	sub := b.Subscribe(context.Background(), uuid.New(), 1)
	sub.Close()
	sub.Close()
}
