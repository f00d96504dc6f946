// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lferraz/leadscout/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs a human-readable summary of a discovery run.
func (p *Printer) PrintRunSummary(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	if run.StopReason != "" {
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", run.StopReason))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Queries issued:   %d\n", run.Counters.QueriesIssued))
	sb.WriteString(fmt.Sprintf("Pages fetched:    %d\n", run.Counters.PagesFetched))
	sb.WriteString(fmt.Sprintf("Results seen:     %d\n", run.Counters.ResultsSeen))
	sb.WriteString(fmt.Sprintf("Candidates found: %d\n", run.Counters.CandidatesFound))
	sb.WriteString(fmt.Sprintf("Duplicates:       %d", run.Counters.DuplicatesFound))
	if run.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("\n\nDuration: %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second)))
	}

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintCandidates outputs the top candidates, highest score first when scored.
func (p *Printer) PrintCandidates(candidates []types.Candidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total candidates: %d\n\n", len(candidates)))

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		name := c.RecordID
		if c.Details != nil && c.Details.Name != "" {
			name = c.Details.Name
		}
		if len(name) > 44 {
			name = name[:41] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, name))
		if c.Score != nil {
			sb.WriteString(fmt.Sprintf("    Score: %d", *c.Score))
		} else {
			sb.WriteString("    Score: -")
		}
		sb.WriteString(fmt.Sprintf("  Hits: %d\n", c.HitCount))
		if c.Details != nil && c.Details.Address != "" {
			addr := c.Details.Address
			if len(addr) > 46 {
				addr = addr[:43] + "..."
			}
			sb.WriteString(fmt.Sprintf("    %s\n", addr))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more candidates", len(candidates)-maxItemsToShow))
	}

	p.printBox("TOP CANDIDATES", sb.String())
}

// PrintEnrichment outputs enrichment phase progress.
func (p *Printer) PrintEnrichment(progress types.EnrichmentProgress) {
	var sb strings.Builder
	if progress.Running {
		sb.WriteString("State:    running\n")
	} else {
		sb.WriteString("State:    idle\n")
	}
	sb.WriteString(fmt.Sprintf("Enriched: %d\n", progress.Enriched))
	sb.WriteString(fmt.Sprintf("Pending:  %d\n", progress.Pending))
	sb.WriteString(fmt.Sprintf("Total:    %d", progress.Total))

	p.printBox("ENRICHMENT", sb.String())
}

// PrintScoring outputs scoring phase progress.
func (p *Printer) PrintScoring(progress types.ScoringProgress) {
	var sb strings.Builder
	if progress.Running {
		sb.WriteString("State:    running\n")
	} else {
		sb.WriteString("State:    idle\n")
	}
	sb.WriteString(fmt.Sprintf("Scored:   %d (%d high confidence)\n", progress.Scored, progress.HighConfidence))
	sb.WriteString(fmt.Sprintf("Pending:  %d\n", progress.Pending))
	if progress.TotalBatches > 0 {
		sb.WriteString(fmt.Sprintf("Batches:  %d/%d", progress.DoneBatches, progress.TotalBatches))
	} else {
		sb.WriteString("Batches:  -")
	}

	p.printBox("SCORING", sb.String())
}

// PrintQueryTrail outputs the most recent executed queries with result counts.
func (p *Printer) PrintQueryTrail(queries []types.Query) {
	if len(queries) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(queries), maxItemsToShow)
	for i := 0; i < count; i++ {
		q := queries[i]
		text := q.Text
		if len(text) > 36 {
			text = text[:33] + "..."
		}
		marker := " "
		if q.Origin == types.OriginGenerated {
			marker = "+"
		}
		sb.WriteString(fmt.Sprintf("%s %-36s new:%d dup:%d\n", marker, text, q.NewCandidates, q.Duplicates))
	}
	if len(queries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more queries", len(queries)-maxItemsToShow))
	}

	p.printBox("QUERY TRAIL", strings.TrimSuffix(sb.String(), "\n"))
}
