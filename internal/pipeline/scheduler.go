package pipeline

import (
	"errors"
	"strings"

	"github.com/lferraz/leadscout/internal/types"
)

// ErrExhausted is returned by Next when no queries remain.
var ErrExhausted = errors.New("query scheduler exhausted")

type scheduledQuery struct {
	text   string
	origin types.QueryOrigin
}

// Scheduler is the ordered query queue: the seed list fixed at run start plus
// a mutable tail of generated queries. The run controller is the sole
// consumer and sole appender, so the scheduler needs no locking of its own.
type Scheduler struct {
	pending []scheduledQuery
	pos     int
	known   map[string]bool // normalized text of everything issued or queued
}

// NewScheduler creates a scheduler over the seed list, dropping duplicate
// seeds under normalized comparison.
func NewScheduler(seeds []string) *Scheduler {
	s := &Scheduler{known: make(map[string]bool)}
	for _, q := range seeds {
		s.add(q, types.OriginSeed)
	}
	return s
}

// normalizeQuery lowercases and collapses whitespace so "Acai  Bowl" and
// "acai bowl" compare equal.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (s *Scheduler) add(text string, origin types.QueryOrigin) bool {
	norm := normalizeQuery(text)
	if norm == "" || s.known[norm] {
		return false
	}
	s.known[norm] = true
	s.pending = append(s.pending, scheduledQuery{text: strings.TrimSpace(text), origin: origin})
	return true
}

// HasNext reports whether an unissued query remains.
func (s *Scheduler) HasNext() bool {
	return s.pos < len(s.pending)
}

// Next returns the next query text and origin and advances the position.
func (s *Scheduler) Next() (string, types.QueryOrigin, error) {
	if !s.HasNext() {
		return "", "", ErrExhausted
	}
	q := s.pending[s.pos]
	s.pos++
	return q.text, q.origin, nil
}

// Position returns the number of queries taken so far; the next query is
// issued at this position.
func (s *Scheduler) Position() int {
	return s.pos
}

// Remaining returns the number of queued, unissued queries.
func (s *Scheduler) Remaining() int {
	return len(s.pending) - s.pos
}

// Append adds generated queries to the tail, skipping any text already issued
// or queued. Returns the number actually added.
func (s *Scheduler) Append(texts []string) int {
	added := 0
	for _, t := range texts {
		if s.add(t, types.OriginGenerated) {
			added++
		}
	}
	return added
}
