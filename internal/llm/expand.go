package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExpandSummary describes what the run has found so far. It is the input
// signal for suggesting new search queries.
type ExpandSummary struct {
	QueriesRun     int
	CandidateCount int
	RecentQueries  []string // most recent completed query texts
}

// Expander suggests additional search queries from a run summary. Expansion
// is best-effort: callers treat any error as a skipped cycle.
type Expander struct {
	client Client
}

// NewExpander creates an expander over the given client.
func NewExpander(client Client) *Expander {
	return &Expander{client: client}
}

const expandPrompt = `You are helping discover Brazilian-owned or Brazilian-themed businesses in the Boston metro area using map text-search queries.

Current stats:
- Queries run so far: %d
- Unique candidates collected: %d

Sample of queries already run (most recent):
%s

Suggest 10-15 NEW short search query strings that might discover businesses not found yet.

Rules:
- Each query should be a short phrase someone might type into a map search
- Focus on Portuguese words, Brazilian food terms, cultural terms, and business name patterns
- Avoid near-duplicates of queries already run
- Include neighborhood variants where useful: Allston, Brighton, East Boston, Everett, Chelsea, Somerville, Framingham, Marlborough, Brockton

Return ONLY a JSON array of strings:
["query 1", "query 2"]`

// ExpandQueries asks the model for new query suggestions. An empty result is
// valid and means no expansion this cycle.
func (e *Expander) ExpandQueries(ctx context.Context, summary ExpandSummary) ([]string, error) {
	recent, err := json.Marshal(summary.RecentQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recent queries: %w", err)
	}

	prompt := fmt.Sprintf(expandPrompt, summary.QueriesRun, summary.CandidateCount, recent)
	raw, err := e.client.GenerateJSON(ctx, prompt, TierLite)
	if err != nil {
		return nil, fmt.Errorf("expansion call failed: %w", err)
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse expansion response: %w", err)
	}

	out := make([]string, 0, len(suggestions))
	for _, q := range suggestions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}
