package core

import "testing"

func TestPolicyDecide(t *testing.T) {
	policy := NewConfidencePolicy(0.75, 0.50, 2)

	tests := []struct {
		name       string
		confidence float64
		kind       AttemptKind
		depth      int
		want       PolicyOutcome
	}{
		{"high confidence accepted", 0.95, AttemptInitial, 0, OutcomeAccept},
		{"exactly high threshold accepted", 0.75, AttemptInitial, 0, OutcomeAccept},
		{"mid band accepted without escalation", 0.60, AttemptInitial, 0, OutcomeAccept},
		{"exactly low threshold accepted", 0.50, AttemptInitial, 0, OutcomeAccept},
		{"just below low threshold escalates", 0.49, AttemptInitial, 0, OutcomeEscalate},
		{"low confidence escalates at depth zero", 0.30, AttemptInitial, 0, OutcomeEscalate},
		{"low confidence escalates below max depth", 0.30, AttemptEscalated, 1, OutcomeEscalate},
		{"low confidence at max depth rejects", 0.30, AttemptEscalated, 2, OutcomeRejectMaxDepth},
		{"low confidence beyond max depth rejects", 0.30, AttemptEscalated, 3, OutcomeRejectMaxDepth},
		{"high confidence at max depth still accepted", 0.80, AttemptEscalated, 2, OutcomeAccept},
		{"mid band at max depth still accepted", 0.55, AttemptEscalated, 2, OutcomeAccept},
		{"zero confidence escalates", 0.0, AttemptInitial, 0, OutcomeEscalate},
		{"full confidence accepted", 1.0, AttemptInitial, 0, OutcomeAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.confidence, tt.kind, tt.depth)
			if got != tt.want {
				t.Errorf("Decide(%.2f, %s, %d) = %s, want %s",
					tt.confidence, tt.kind, tt.depth, got, tt.want)
			}
		})
	}
}

func TestPolicyDecideZeroMaxDepth(t *testing.T) {
	policy := NewConfidencePolicy(0.75, 0.50, 0)

	if got := policy.Decide(0.10, AttemptInitial, 0); got != OutcomeRejectMaxDepth {
		t.Errorf("with max depth 0, low confidence should reject immediately, got %s", got)
	}
	if got := policy.Decide(0.90, AttemptInitial, 0); got != OutcomeAccept {
		t.Errorf("with max depth 0, high confidence should still accept, got %s", got)
	}
}

func TestPolicyOutcomeString(t *testing.T) {
	tests := []struct {
		outcome PolicyOutcome
		want    string
	}{
		{OutcomeAccept, "accept"},
		{OutcomeEscalate, "escalate"},
		{OutcomeRejectMaxDepth, "reject_max_depth"},
		{PolicyOutcome(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
