package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/lferraz/leadscout/internal/types"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	started := time.Now().Add(-90 * time.Second)
	finished := time.Now()
	run := &types.Run{
		ID:         uuid.New(),
		Status:     types.StatusDone,
		StopReason: "novelty_floor_reached (rate 0.031)",
		Counters: types.RunCounters{
			QueriesIssued:   42,
			PagesFetched:    61,
			ResultsSeen:     820,
			CandidatesFound: 310,
			DuplicatesFound: 510,
		},
		StartedAt:  started,
		FinishedAt: &finished,
	}

	p.PrintRunSummary(run)
	output := buf.String()

	assert.Contains(t, output, "RUN SUMMARY")
	assert.Contains(t, output, "done")
	assert.Contains(t, output, "novelty_floor_reached")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "310")
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(nil)

	assert.Empty(t, buf.String())
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	score := 88
	candidates := []types.Candidate{
		{
			RecordID: "p1",
			HitCount: 4,
			Score:    &score,
			Details: &types.CandidateDetails{
				Name:    "Padaria Brasil",
				Address: "123 Harvard Ave, Allston, MA",
			},
		},
		{
			RecordID: "p2",
			HitCount: 1,
		},
	}

	p.PrintCandidates(candidates)
	output := buf.String()

	assert.Contains(t, output, "TOP CANDIDATES")
	assert.Contains(t, output, "Padaria Brasil")
	assert.Contains(t, output, "88")
	assert.Contains(t, output, "p2", "an unenriched candidate falls back to its record id")
}

func TestPrintCandidates_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCandidates(nil)

	assert.Empty(t, buf.String())
}

func TestPrintCandidates_TruncatesLongList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	candidates := make([]types.Candidate, 15)
	for i := range candidates {
		candidates[i] = types.Candidate{RecordID: "p", HitCount: 1}
	}

	p.PrintCandidates(candidates)

	assert.Contains(t, buf.String(), "and 5 more")
}

func TestPrintEnrichment(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEnrichment(types.EnrichmentProgress{Running: true, Enriched: 30, Pending: 12, Total: 42})
	output := buf.String()

	assert.Contains(t, output, "ENRICHMENT")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "30")
	assert.Contains(t, output, "12")
}

func TestPrintScoring(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScoring(types.ScoringProgress{Scored: 20, HighConfidence: 6, Pending: 0, DoneBatches: 2, TotalBatches: 2})
	output := buf.String()

	assert.Contains(t, output, "SCORING")
	assert.Contains(t, output, "idle")
	assert.Contains(t, output, "6 high confidence")
	assert.Contains(t, output, "2/2")
}

func TestPrintQueryTrail(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	queries := []types.Query{
		{Text: "churrascaria Boston", Origin: types.OriginSeed, NewCandidates: 5, Duplicates: 2},
		{Text: "padaria brighton", Origin: types.OriginGenerated, NewCandidates: 1, Duplicates: 0},
	}

	p.PrintQueryTrail(queries)
	output := buf.String()

	assert.Contains(t, output, "QUERY TRAIL")
	assert.Contains(t, output, "churrascaria Boston")
	assert.Contains(t, output, "+ padaria brighton", "generated queries carry a marker")
}
