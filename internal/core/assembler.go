package core

import (
	"fmt"
	"time"
)

// AssembleResult projects a terminal workflow state into the externally
// visible classification result. The most recent attempt is the one reported:
// escalation supersedes, it does not blend.
func AssembleResult(state *WorkflowState, elapsed time.Duration) (*ClassificationResult, error) {
	if !state.Terminal {
		return nil, fmt.Errorf("cannot assemble result for email %s: workflow not finalized", state.Input.EmailID)
	}
	final := state.Latest()
	if final == nil {
		return nil, fmt.Errorf("cannot assemble result for email %s: no attempts recorded", state.Input.EmailID)
	}

	path := make([]AttemptKind, 0, len(state.Attempts))
	for _, attempt := range state.Attempts {
		path = append(path, attempt.Kind)
	}

	decision := AcceptedHighConfidence
	switch {
	case state.Outcome() == OutcomeRejectMaxDepth:
		decision = AcceptedLowConfidenceFinal
	case len(state.Attempts) > 1:
		decision = AcceptedAfterEscalation
	}

	return &ClassificationResult{
		EmailID:          state.Input.EmailID,
		Category:         final.Category,
		Confidence:       final.Confidence,
		Reasoning:        final.Reasoning,
		Keywords:         final.Keywords,
		PathTaken:        path,
		ProcessingTimeMs: float64(elapsed) / float64(time.Millisecond),
		Decision:         decision,
		Anomalous:        final.Anomalous,
		ModelUsed:        final.ModelUsed,
		AnalyzedAt:       final.AnalyzedAt,
	}, nil
}
