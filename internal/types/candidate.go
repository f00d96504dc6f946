package types

import "time"

// CandidateDetails holds the descriptive attributes returned by the detail
// capability. All fields are empty until enrichment succeeds.
type CandidateDetails struct {
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	Categories      []string `json:"categories,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	BusinessStatus  string   `json:"business_status,omitempty"`
	MapsURI         string   `json:"maps_uri,omitempty"`
}

// Candidate is a deduplicated record keyed by its external record identifier.
// Candidates are merged into on rediscovery and never deleted. The invariant
// HitCount == len(SourceQueries) holds at all times.
type Candidate struct {
	RecordID      string            `json:"record_id"`
	HitCount      int               `json:"hit_count"`
	SourceQueries []string          `json:"source_queries"`
	Enriched      bool              `json:"enriched"`
	Details       *CandidateDetails `json:"details,omitempty"`
	Score         *int              `json:"score,omitempty"`
	Rationale     string            `json:"rationale,omitempty"`
	FirstSeenAt   time.Time         `json:"first_seen_at"`
}

// EnrichmentProgress reports the state of the enrichment phase.
type EnrichmentProgress struct {
	Running  bool `json:"running"`
	Enriched int  `json:"enriched"`
	Pending  int  `json:"pending"`
	Total    int  `json:"total"`
}

// ScoringProgress reports the state of the scoring phase. DoneBatches and
// TotalBatches are only meaningful while Running is true.
type ScoringProgress struct {
	Running        bool `json:"running"`
	Scored         int  `json:"scored"`
	HighConfidence int  `json:"high_confidence"`
	Pending        int  `json:"pending"`
	DoneBatches    int  `json:"done_batches,omitempty"`
	TotalBatches   int  `json:"total_batches,omitempty"`
}
