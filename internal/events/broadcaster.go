// Package events implements the append-only event log broadcast: every event
// is persisted first, then multicast to live subscribers of the matching run.
// Late subscribers replay the persisted sequence and splice onto the live
// feed without gaps or duplicates.
package events

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// Broadcaster persists events through the store and fans them out to
// subscribers keyed by run ID. Global events (zero run ID) reach every
// subscriber.
type Broadcaster struct {
	store store.Store

	// pubMu serializes persist+fan-out so live enqueue order matches the
	// assigned global sequence even with concurrent publishers.
	pubMu sync.Mutex

	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

// NewBroadcaster creates a broadcaster over the given store.
func NewBroadcaster(st store.Store) *Broadcaster {
	return &Broadcaster{
		store: st,
		subs:  make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// Publish persists the event, assigning its sequence numbers, then multicasts
// it: run events go to that run's subscribers, global events to everyone.
// Persist and fan-out happen under one lock; without it two concurrent
// publishers could enqueue in inverted sequence order and the subscriber's
// monotone cursor would drop the lower-sequence event.
func (b *Broadcaster) Publish(ctx context.Context, ev types.Event) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if err := b.store.AppendEvent(ctx, &ev); err != nil {
		return err
	}
	b.mu.Lock()
	if ev.RunID == uuid.Nil {
		for _, set := range b.subs {
			for sub := range set {
				sub.enqueue(ev)
			}
		}
	} else {
		for sub := range b.subs[ev.RunID] {
			sub.enqueue(ev)
		}
	}
	b.mu.Unlock()
	return nil
}

// Emit publishes an event and logs instead of failing when persistence is
// unavailable. Used for telemetry emission inside loops where an event write
// failure must not take the pipeline down.
func (b *Broadcaster) Emit(ctx context.Context, runID uuid.UUID, level types.EventLevel, name string, payload map[string]any) {
	ev := types.Event{RunID: runID, Level: level, Name: name, Payload: payload}
	if err := b.Publish(ctx, ev); err != nil {
		log.Printf("event %s dropped from log: %v", name, err)
	}
}

// Subscribe attaches a subscriber to a run's event stream, which includes
// global events. Persisted events with sequence >= fromSeq are replayed
// first, then delivery switches to live events; the splice never drops or
// duplicates an event. The subscription ends when ctx is cancelled or Close
// is called.
func (b *Broadcaster) Subscribe(ctx context.Context, runID uuid.UUID, fromSeq int64) *Subscription {
	sub := &Subscription{
		b:     b,
		runID: runID,
		ch:    make(chan types.Event, 64),
		wake:  make(chan struct{}, 1),
	}

	// Register before replay so live events published during replay are
	// buffered rather than lost.
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[*Subscription]struct{})
	}
	b.subs[runID][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(ctx, fromSeq)
	return sub
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs[sub.runID], sub)
	b.mu.Unlock()
}

// Subscription is one attached event consumer.
type Subscription struct {
	b     *Broadcaster
	runID uuid.UUID
	ch    chan types.Event
	wake  chan struct{}

	mu     sync.Mutex
	queue  []types.Event
	closed bool
}

// Events returns the ordered event stream. The channel is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan types.Event {
	return s.ch
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.b.unsubscribe(s)
	s.signal()
}

// enqueue buffers a live event. Called by the broadcaster with its own lock
// held, so it must not block.
func (s *Subscription) enqueue(ev types.Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run replays the persisted sequence, then drains the live buffer. The cursor
// advances monotonically over the store's global sequence; any live event
// already covered by replay is skipped.
func (s *Subscription) run(ctx context.Context, fromSeq int64) {
	defer func() {
		s.Close()
		close(s.ch)
	}()

	cursor := fromSeq - 1

	for {
		batch, err := s.b.store.EventsSince(ctx, s.runID, cursor, 500)
		if err != nil {
			log.Printf("event replay for run %s failed: %v", s.runID, err)
			return
		}
		if len(batch) == 0 {
			break
		}
		for _, ev := range batch {
			if !s.deliver(ctx, ev) {
				return
			}
			cursor = ev.Seq
		}
	}

	for {
		s.mu.Lock()
		queue := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, ev := range queue {
			if ev.Seq <= cursor {
				continue // already delivered during replay
			}
			if !s.deliver(ctx, ev) {
				return
			}
			cursor = ev.Seq
		}
		if closed {
			return
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) deliver(ctx context.Context, ev types.Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
