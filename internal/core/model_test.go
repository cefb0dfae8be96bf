package core

import (
	"math"
	"testing"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		name          string
		in            float64
		want          float64
		wantAnomalous bool
	}{
		{"in range", 0.75, 0.75, false},
		{"lower bound", 0.0, 0.0, false},
		{"upper bound", 1.0, 1.0, false},
		{"above range clamps to one", 1.5, 1.0, true},
		{"below range clamps to zero", -0.2, 0.0, true},
		{"positive infinity clamps to one", math.Inf(1), 1.0, true},
		{"negative infinity clamps to zero", math.Inf(-1), 0.0, true},
		{"NaN clamps to zero", math.NaN(), 0.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, anomalous := ClampConfidence(tt.in)
			if got != tt.want || anomalous != tt.wantAnomalous {
				t.Errorf("ClampConfidence(%v) = (%v, %v), want (%v, %v)",
					tt.in, got, anomalous, tt.want, tt.wantAnomalous)
			}
		})
	}
}

func TestWorkflowStateDepthTracksAttempts(t *testing.T) {
	state := NewWorkflowState(testInput())

	if state.Depth != 0 || state.Latest() != nil {
		t.Fatalf("fresh state should have depth 0 and no attempts")
	}

	first := attemptWith(CategorySpam, 0.4)
	state.Append(first)
	if state.Depth != 1 || state.Latest() != first {
		t.Errorf("after one append: depth = %d, latest = %p", state.Depth, state.Latest())
	}

	second := attemptWith(CategorySpam, 0.9)
	state.Append(second)
	if state.Depth != 2 || state.Latest() != second {
		t.Errorf("after two appends: depth = %d", state.Depth)
	}
}

func TestWorkflowStateIgnoresAppendAfterFinalize(t *testing.T) {
	state := NewWorkflowState(testInput())
	state.Append(attemptWith(CategorySpam, 0.9))
	state.Finalize(OutcomeAccept)

	state.Append(attemptWith(CategoryOther, 0.1))
	if state.Depth != 1 || len(state.Attempts) != 1 {
		t.Errorf("append after finalize should be ignored, got depth %d", state.Depth)
	}
	if state.Outcome() != OutcomeAccept {
		t.Errorf("Outcome() = %s, want accept", state.Outcome())
	}
}
