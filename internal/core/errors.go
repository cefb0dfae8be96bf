package core

import (
	"errors"
	"fmt"
)

// Provider-layer failures. Adapters wrap concrete transport errors with these
// sentinels so the engine can discriminate them with errors.Is.
var (
	// ErrProviderTimeout is returned when a provider call exceeds its per-call timeout
	ErrProviderTimeout = errors.New("provider call timed out")
	// ErrProviderUnavailable is returned on connection or authentication failure
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderMalformedResponse is returned when a provider response cannot
	// be parsed into a category and confidence
	ErrProviderMalformedResponse = errors.New("provider returned malformed response")
)

// ErrRequestTimedOut reports that the caller's overall deadline expired and
// the run was cancelled before reaching a terminal result.
var ErrRequestTimedOut = errors.New("classification request timed out")

// WorkflowError is a terminal engine failure: the retry budget was exhausted
// on transient provider errors, or the provider returned an unusable response.
type WorkflowError struct {
	EmailID string
	Calls   int
	Err     error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow failed for email %s after %d provider calls: %v", e.EmailID, e.Calls, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
