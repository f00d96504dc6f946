package types

import (
	"time"

	"github.com/google/uuid"
)

// EventLevel is the severity of a pipeline event.
type EventLevel string

// Event levels.
const (
	LevelDebug EventLevel = "debug"
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// Canonical event names emitted by the pipeline. The event log is the audit
// trail of a run: every state transition and every skipped unit of work is
// recorded before the transition it causes.
const (
	EventRunStart        = "RUN_START"
	EventRunComplete     = "RUN_COMPLETE"
	EventRunStopped      = "RUN_STOPPED"
	EventRunFailed       = "RUN_FAILED"
	EventQueryCompleted  = "QUERY_COMPLETED"
	EventSearchError     = "SEARCH_ERROR"
	EventStopping        = "STOPPING"
	EventExpandDone      = "EXPAND_DONE"
	EventExpandError     = "EXPAND_ERROR"
	EventEnrichStart     = "ENRICH_START"
	EventEnrichSkip      = "ENRICH_SKIP"
	EventEnrichComplete  = "ENRICH_COMPLETE"
	EventScoreStart      = "SCORE_START"
	EventScoreBatchError = "SCORE_BATCH_ERROR"
	EventScoreComplete   = "SCORE_COMPLETE"
)

// Event is one append-only log record. Seq is a process-wide monotonically
// increasing sequence assigned by the store on append; RunSeq is the per-run
// append position. Events are immutable once written.
type Event struct {
	Seq       int64          `json:"seq"`
	RunSeq    int64          `json:"run_seq"`
	RunID     uuid.UUID      `json:"run_id"` // uuid.Nil for global events
	Level     EventLevel     `json:"level"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
