package core

import (
	"math"
	"time"
)

// AttemptKind distinguishes a first-pass classification from an escalated re-analysis
type AttemptKind string

const (
	AttemptInitial   AttemptKind = "INITIAL"
	AttemptEscalated AttemptKind = "ESCALATED"
)

// Known email categories. Providers may return a category outside this set;
// it is passed through unaltered.
const (
	CategorySpam          = "spam"
	CategoryPhishing      = "phishing"
	CategoryPromotional   = "promotional"
	CategoryTransactional = "transactional"
	CategoryPersonal      = "personal"
	CategoryOther         = "other"
)

// Decision describes how the final classification was reached
type Decision string

const (
	// AcceptedHighConfidence means the first attempt was confident enough
	AcceptedHighConfidence Decision = "accepted_high_confidence"
	// AcceptedAfterEscalation means at least one re-analysis pass was needed
	AcceptedAfterEscalation Decision = "accepted_after_escalation"
	// AcceptedLowConfidenceFinal means escalation depth ran out and the last
	// attempt was accepted as final despite low confidence
	AcceptedLowConfidenceFinal Decision = "accepted_low_confidence_final"
)

// ClassificationInput is the validated email payload handed to the workflow.
// It is never mutated after creation.
type ClassificationInput struct {
	EmailID string
	Subject string
	Body    string
	Sender  string
}

// ClassificationAttempt is the outcome of one provider invocation
type ClassificationAttempt struct {
	Category   string
	Confidence float64
	Reasoning  string
	Keywords   []string
	Kind       AttemptKind
	Anomalous  bool
	ModelUsed  string
	AnalyzedAt time.Time
}

// WorkflowState is the mutable accumulator for one in-flight workflow run.
// It is owned by a single run and never shared between requests.
type WorkflowState struct {
	Input    *ClassificationInput
	Attempts []*ClassificationAttempt
	Depth    int
	Terminal bool

	outcome PolicyOutcome
}

// NewWorkflowState creates the initial state for a run
func NewWorkflowState(input *ClassificationInput) *WorkflowState {
	return &WorkflowState{
		Input:    input,
		Attempts: make([]*ClassificationAttempt, 0, 1),
	}
}

// Append records a completed attempt. Depth always equals the number of
// recorded attempts. Appending after finalization is ignored.
func (s *WorkflowState) Append(attempt *ClassificationAttempt) {
	if s.Terminal {
		return
	}
	s.Attempts = append(s.Attempts, attempt)
	s.Depth = len(s.Attempts)
}

// Latest returns the most recent attempt, or nil if none were recorded
func (s *WorkflowState) Latest() *ClassificationAttempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return s.Attempts[len(s.Attempts)-1]
}

// Finalize marks the run terminal, recording the policy outcome that ended it
func (s *WorkflowState) Finalize(outcome PolicyOutcome) {
	s.Terminal = true
	s.outcome = outcome
}

// Outcome returns the policy outcome that finalized the run
func (s *WorkflowState) Outcome() PolicyOutcome {
	return s.outcome
}

// ClassificationResult is the immutable, externally visible output of a run
type ClassificationResult struct {
	EmailID          string
	Category         string
	Confidence       float64
	Reasoning        string
	Keywords         []string
	PathTaken        []AttemptKind
	ProcessingTimeMs float64
	Decision         Decision
	Anomalous        bool
	ModelUsed        string
	AnalyzedAt       time.Time
}

// CacheEntry is a cached classification keyed by email content hash
type CacheEntry struct {
	ContentKey string
	Category   string
	Confidence float64
	Reasoning  string
	Keywords   []string
	Decision   Decision
	LastSeen   time.Time
	ExpiresAt  time.Time
}

// ClampConfidence bounds a provider-reported confidence to [0.0, 1.0]. The
// second return reports whether the provider violated the contract, which
// marks the attempt as anomalous.
func ClampConfidence(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, -1):
		return 0.0, true
	case math.IsInf(v, 1):
		return 1.0, true
	case v < 0.0:
		return 0.0, true
	case v > 1.0:
		return 1.0, true
	}
	return v, false
}
