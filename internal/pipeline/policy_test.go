package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopPolicy_Priority(t *testing.T) {
	policy := StopPolicy{MaxQueries: 10, MaxCandidates: 100, NoveltyFloor: 0.05}

	tests := []struct {
		name   string
		in     PolicyInputs
		stop   bool
		reason string
	}{
		{
			name: "no condition met",
			in:   PolicyInputs{QueriesRun: 5, CandidateCount: 50, WindowFull: true, NoveltyRate: 0.5},
			stop: false,
		},
		{
			name:   "exhausted wins over everything",
			in:     PolicyInputs{SchedulerEmpty: true, QueriesRun: 10, CandidateCount: 100, WindowFull: true, NoveltyRate: 0},
			stop:   true,
			reason: ReasonExhausted,
		},
		{
			name:   "max queries before max candidates",
			in:     PolicyInputs{QueriesRun: 10, CandidateCount: 100, WindowFull: true, NoveltyRate: 0},
			stop:   true,
			reason: ReasonMaxQueries,
		},
		{
			name:   "max candidates before novelty",
			in:     PolicyInputs{QueriesRun: 5, CandidateCount: 100, WindowFull: true, NoveltyRate: 0},
			stop:   true,
			reason: ReasonMaxCandidates,
		},
		{
			name:   "novelty floor",
			in:     PolicyInputs{QueriesRun: 5, CandidateCount: 50, WindowFull: true, NoveltyRate: 0.01},
			stop:   true,
			reason: ReasonNoveltyFloor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Evaluate(tt.in)
			assert.Equal(t, tt.stop, d.Stop)
			if tt.stop {
				assert.True(t, strings.HasPrefix(d.Reason, tt.reason), "reason %q", d.Reason)
			}
		})
	}
}

func TestStopPolicy_NoveltyNeedsFullWindow(t *testing.T) {
	policy := StopPolicy{MaxQueries: 100, MaxCandidates: 1000, NoveltyFloor: 0.05}

	d := policy.Evaluate(PolicyInputs{QueriesRun: 3, WindowFull: false, NoveltyRate: 0})
	assert.False(t, d.Stop, "partial window must never trip the novelty floor")

	d = policy.Evaluate(PolicyInputs{QueriesRun: 30, WindowFull: true, NoveltyRate: 0})
	assert.True(t, d.Stop)
}

func TestStopPolicy_NoveltyComparisonIsStrict(t *testing.T) {
	policy := StopPolicy{MaxQueries: 100, MaxCandidates: 1000, NoveltyFloor: 0.05}

	// Rate exactly at the floor keeps going.
	d := policy.Evaluate(PolicyInputs{QueriesRun: 30, WindowFull: true, NoveltyRate: 0.05})
	assert.False(t, d.Stop)

	d = policy.Evaluate(PolicyInputs{QueriesRun: 30, WindowFull: true, NoveltyRate: 0.0499})
	assert.True(t, d.Stop)
}

func TestStopPolicy_QueryBudgetIsExact(t *testing.T) {
	policy := StopPolicy{MaxQueries: 5, MaxCandidates: 1000, NoveltyFloor: 0}

	d := policy.Evaluate(PolicyInputs{QueriesRun: 4})
	assert.False(t, d.Stop, "a fifth query must still be allowed")

	d = policy.Evaluate(PolicyInputs{QueriesRun: 5})
	assert.True(t, d.Stop)
}
