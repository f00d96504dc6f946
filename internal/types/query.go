package types

import (
	"time"

	"github.com/google/uuid"
)

// QueryOrigin marks whether a query came from the seed bank or was generated
// by the expansion capability during the run.
type QueryOrigin string

// Query origins.
const (
	OriginSeed      QueryOrigin = "seed"
	OriginGenerated QueryOrigin = "generated"
)

// Query is one issued search query. The text, origin, and position are fixed
// when the query is issued; only the result counters are filled in afterwards.
type Query struct {
	ID            int64       `json:"id"`
	RunID         uuid.UUID   `json:"run_id"`
	Text          string      `json:"text"`
	Origin        QueryOrigin `json:"origin"`
	Position      int         `json:"position"`
	Pages         int         `json:"pages"`
	Results       int         `json:"results"`
	NewCandidates int         `json:"new_candidates"`
	Duplicates    int         `json:"duplicates"`
	DurationMs    int64       `json:"duration_ms"`
	Error         string      `json:"error,omitempty"`
	IssuedAt      time.Time   `json:"issued_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}
