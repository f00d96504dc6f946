package places

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the record id no longer resolves to a place
// (deleted or invalid id). Enrichment skips these.
var ErrNotFound = errors.New("place not found")

// TransientError wraps a retryable failure: network errors, timeouts,
// throttling, and server-side errors.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s error: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// FatalError wraps a non-retryable API failure such as a rejected request or
// an authentication problem.
type FatalError struct {
	Op     string
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal %s error: HTTP %d: %s", e.Op, e.Status, e.Body)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
