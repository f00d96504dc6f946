package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoveltyTracker_RateIsResultWeighted(t *testing.T) {
	tr := NewNoveltyTracker(3)

	// 2 new of 20, then 0 of 20, then 1 of 10: 3/50, not a per-query average.
	tr.Record(2, 20)
	tr.Record(0, 20)
	tr.Record(1, 10)

	assert.True(t, tr.Full())
	assert.InDelta(t, 0.06, tr.Rate(), 1e-9)
}

func TestNoveltyTracker_EvictsOldest(t *testing.T) {
	tr := NewNoveltyTracker(2)

	tr.Record(10, 10)
	tr.Record(0, 10)
	tr.Record(0, 10) // evicts the all-new sample

	assert.Equal(t, 0.0, tr.Rate())
}

func TestNoveltyTracker_ZeroTotalWindow(t *testing.T) {
	tr := NewNoveltyTracker(2)

	tr.Record(0, 0)
	tr.Record(0, 0)

	assert.True(t, tr.Full())
	assert.Equal(t, 0.0, tr.Rate(), "empty result pages count as zero novelty, not a divide by zero")
}

func TestNoveltyTracker_PartialWindowNotFull(t *testing.T) {
	tr := NewNoveltyTracker(5)
	tr.Record(1, 10)
	assert.False(t, tr.Full())
}
