// Package types defines the shared domain model for the discovery pipeline:
// runs, queries, candidates, and events.
package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a discovery run.
type RunStatus string

// Run lifecycle states. A run is created in StatusRunning and ends in exactly
// one of the terminal states.
const (
	StatusRunning  RunStatus = "running"
	StatusStopping RunStatus = "stopping"
	StatusStopped  RunStatus = "stopped"
	StatusDone     RunStatus = "done"
	StatusFailed   RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusStopped, StatusDone, StatusFailed:
		return true
	}
	return false
}

// RunCounters holds the cumulative counters for one run.
type RunCounters struct {
	QueriesIssued   int `json:"queries_issued"`
	PagesFetched    int `json:"pages_fetched"`
	ResultsSeen     int `json:"results_seen"`
	CandidatesFound int `json:"candidates_found"`
	DuplicatesFound int `json:"duplicates_found"`
}

// Run is one discovery run. At most one run is active per process; only the
// run controller mutates it after creation.
type Run struct {
	ID         uuid.UUID   `json:"id"`
	Status     RunStatus   `json:"status"`
	StopReason string      `json:"stop_reason,omitempty"`
	Counters   RunCounters `json:"counters"`
	SeedCount  int         `json:"seed_count"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
