package pipeline

// noveltySample records one completed query's result split.
type noveltySample struct {
	newCount int
	total    int
}

// NoveltyTracker keeps a rolling window of per-query new-vs-total counts.
// The novelty rate is the fraction of results in the window that were
// previously unseen, not the fraction of queries that found anything new.
type NoveltyTracker struct {
	size   int
	window []noveltySample
}

// NewNoveltyTracker creates a tracker with the given window size.
func NewNoveltyTracker(size int) *NoveltyTracker {
	return &NoveltyTracker{size: size}
}

// Record appends one completed query's counts, evicting the oldest sample
// once the window is full.
func (t *NoveltyTracker) Record(newCount, total int) {
	t.window = append(t.window, noveltySample{newCount: newCount, total: total})
	if len(t.window) > t.size {
		t.window = t.window[1:]
	}
}

// Full reports whether enough queries have completed to fill the window.
// The stopping policy never acts on a partial window.
func (t *NoveltyTracker) Full() bool {
	return len(t.window) >= t.size
}

// Rate returns sum(new)/sum(total) over the window. A window with zero total
// discoveries has rate 0.
func (t *NoveltyTracker) Rate() float64 {
	var newSum, totalSum int
	for _, s := range t.window {
		newSum += s.newCount
		totalSum += s.total
	}
	if totalSum == 0 {
		return 0
	}
	return float64(newSum) / float64(totalSum)
}
