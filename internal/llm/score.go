package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lferraz/leadscout/internal/types"
)

// ScoreResult is one scored candidate: a 0-100 confidence and a one-line
// rationale, aligned with the submitted batch order.
type ScoreResult struct {
	RecordID  string `json:"record_id"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// ShapeMismatchError indicates the scoring response did not line up with the
// submitted batch. The batch's candidates stay unscored.
type ShapeMismatchError struct {
	Want   int
	Got    int
	Detail string
}

func (e *ShapeMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("scoring response shape mismatch: %s", e.Detail)
	}
	return fmt.Sprintf("scoring response shape mismatch: want %d results, got %d", e.Want, e.Got)
}

// scoreResponseSchema validates the model output before any result is used:
// an array of objects with a record id, an integer score within 0-100, and a
// rationale string.
const scoreResponseSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["record_id", "score", "rationale"],
		"properties": {
			"record_id": {"type": "string", "minLength": 1},
			"score": {"type": "integer", "minimum": 0, "maximum": 100},
			"rationale": {"type": "string"}
		}
	}
}`

// Scorer scores batches of enriched candidates.
type Scorer struct {
	client Client
	schema *gojsonschema.Schema
}

// NewScorer creates a scorer over the given client.
func NewScorer(client Client) (*Scorer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoreResponseSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile score schema: %w", err)
	}
	return &Scorer{client: client, schema: schema}, nil
}

const scoreSystemPrompt = `You are an expert at identifying Brazilian-owned or Brazilian-themed businesses in the Boston metro area.

Score each place 0-100 for the likelihood it is Brazilian-owned or Brazilian-themed. Be conservative: a borderline case gets 35, not 55.

Calibration anchors:
- 90-100: name is unmistakably Brazilian (Churrascaria, Padaria Brasileira, Do Brasil)
- 75-89: strong Brazilian food terms in the name, or 3+ highly specific query sources
- 50-74: some indicators but plausibly non-Brazilian
- 20-49: weak indicators only; "Brazilian wax" salons score 10-30
- 1-19: incidental match (chains serving acai, generic businesses)
- 0: known non-Brazilian chain or accidental match

Evidence, strongest first: the business name, then query_sources (the exact
searches that surfaced the place), then categories. A high hit_count from weak
queries is not strong evidence.

Return ONLY a JSON array, one object per input place, in the SAME ORDER:
[{"record_id": "...", "score": <integer 0-100>, "rationale": "<one sentence>"}]`

// scoreInput trims a candidate to the fields useful for scoring.
type scoreInput struct {
	RecordID     string   `json:"record_id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	PrimaryType  string   `json:"primary_type"`
	Categories   []string `json:"categories"`
	HitCount     int      `json:"hit_count"`
	QuerySources []string `json:"query_sources"`
}

func formatForScoring(c types.Candidate) scoreInput {
	in := scoreInput{
		RecordID:     c.RecordID,
		Name:         "(unknown)",
		HitCount:     c.HitCount,
		QuerySources: c.SourceQueries,
	}
	if len(in.QuerySources) > 20 {
		in.QuerySources = in.QuerySources[:20] // cap to keep tokens reasonable
	}
	if c.Details != nil {
		if c.Details.Name != "" {
			in.Name = c.Details.Name
		}
		in.Address = c.Details.Address
		in.PrimaryType = c.Details.PrimaryCategory
		in.Categories = c.Details.Categories
	}
	return in
}

// ScoreBatch submits one batch and returns results aligned 1:1 with the
// input order. A response with the wrong count, wrong order, or an
// out-of-range score returns a *ShapeMismatchError and no results.
func (s *Scorer) ScoreBatch(ctx context.Context, batch []types.Candidate) ([]ScoreResult, error) {
	inputs := make([]scoreInput, len(batch))
	for i, c := range batch {
		inputs[i] = formatForScoring(c)
	}
	payload, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring batch: %w", err)
	}

	prompt := fmt.Sprintf("%s\n\nScore these %d places.\n\nPLACES:\n%s", scoreSystemPrompt, len(batch), payload)
	raw, err := s.client.GenerateJSON(ctx, prompt, TierStandard)
	if err != nil {
		return nil, fmt.Errorf("scoring call failed: %w", err)
	}

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &ShapeMismatchError{Detail: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if !result.Valid() {
		return nil, &ShapeMismatchError{Detail: result.Errors()[0].String()}
	}

	var results []ScoreResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, &ShapeMismatchError{Detail: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if len(results) != len(batch) {
		return nil, &ShapeMismatchError{Want: len(batch), Got: len(results)}
	}
	for i, r := range results {
		if r.RecordID != batch[i].RecordID {
			return nil, &ShapeMismatchError{
				Detail: fmt.Sprintf("result %d is for %q, want %q", i, r.RecordID, batch[i].RecordID),
			}
		}
	}
	return results, nil
}
