package pipeline

import "fmt"

// Stop reasons, in the priority order the policy checks them.
const (
	ReasonExhausted     = "query_space_exhausted"
	ReasonMaxQueries    = "max_queries_reached"
	ReasonMaxCandidates = "max_candidates_reached"
	ReasonNoveltyFloor  = "novelty_floor_reached"
	ReasonUserRequested = "user_requested"
)

// Decision is the outcome of one stopping-policy evaluation.
type Decision struct {
	Stop   bool
	Reason string
}

// PolicyInputs is the counter snapshot the policy evaluates. The policy is a
// pure function of these values.
type PolicyInputs struct {
	SchedulerEmpty bool
	QueriesRun     int
	CandidateCount int
	WindowFull     bool
	NoveltyRate    float64
}

// StopPolicy decides when a run ends naturally. Conditions are checked in a
// fixed priority order: exhaustion, query cap, candidate cap, novelty floor.
type StopPolicy struct {
	MaxQueries    int
	MaxCandidates int
	NoveltyFloor  float64
}

// Evaluate returns the stop decision for the given counters. The novelty
// floor comparison is strict and only applies once the window is full;
// insufficient history never stops a run.
func (p StopPolicy) Evaluate(in PolicyInputs) Decision {
	if in.SchedulerEmpty {
		return Decision{Stop: true, Reason: ReasonExhausted}
	}
	if in.QueriesRun >= p.MaxQueries {
		return Decision{Stop: true, Reason: fmt.Sprintf("%s (%d)", ReasonMaxQueries, p.MaxQueries)}
	}
	if in.CandidateCount >= p.MaxCandidates {
		return Decision{Stop: true, Reason: fmt.Sprintf("%s (%d)", ReasonMaxCandidates, p.MaxCandidates)}
	}
	if in.WindowFull && in.NoveltyRate < p.NoveltyFloor {
		return Decision{Stop: true, Reason: fmt.Sprintf("%s (rate %.3f)", ReasonNoveltyFloor, in.NoveltyRate)}
	}
	return Decision{}
}
