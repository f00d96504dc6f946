// Package ratelimit provides the token-bucket gate shared by all outbound
// search and detail calls.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Gate is a blocking token-bucket rate limiter. Callers queue for permits in
// arrival order: each waiter reserves a distinct future slot under the lock,
// so a burst from one caller cannot starve another.
type Gate struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64 // burst capacity
	tokens   float64
	last     time.Time
}

// NewGate creates a gate that grants ratePerSecond permits with the given
// burst capacity. A burst below 1 is treated as 1.
func NewGate(ratePerSecond float64, burst int) *Gate {
	if burst < 1 {
		burst = 1
	}
	return &Gate{
		rate:     ratePerSecond,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// Wait blocks until a permit is available or the context is cancelled. A
// cancelled wait forfeits its reserved slot.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(g.last).Seconds()
	g.tokens = math.Min(g.capacity, g.tokens+elapsed*g.rate)
	g.last = now

	var wait time.Duration
	if g.tokens >= 1 {
		g.tokens--
	} else {
		need := 1 - g.tokens
		wait = time.Duration(need / g.rate * float64(time.Second))
		// Reserve this permit: later waiters refill from after our slot.
		g.tokens = 0
		g.last = now.Add(wait)
	}
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
