package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

// scriptedProvider returns one scripted response per call, in order. Once the
// script is exhausted it repeats the last entry.
type scriptedProvider struct {
	script []scriptedCall
	calls  []*ClassificationRequest
}

type scriptedCall struct {
	attempt *ClassificationAttempt
	err     error
}

func (p *scriptedProvider) Classify(ctx context.Context, req *ClassificationRequest) (*ClassificationAttempt, error) {
	idx := len(p.calls)
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls = append(p.calls, req)
	call := p.script[idx]
	if call.err != nil {
		return nil, call.err
	}
	// Copy so callers cannot mutate the script
	attempt := *call.attempt
	attempt.Kind = req.Mode
	return &attempt, nil
}

func attemptWith(category string, confidence float64) *ClassificationAttempt {
	return &ClassificationAttempt{
		Category:   category,
		Confidence: confidence,
		Reasoning:  "scripted",
		Keywords:   []string{"test"},
		ModelUsed:  "stub-model",
		AnalyzedAt: time.Now(),
	}
}

func testInput() *ClassificationInput {
	return &ClassificationInput{
		EmailID: "test-001",
		Subject: "Quarterly report",
		Body:    "Please find the attached report.",
		Sender:  "alice@example.com",
	}
}

func newTestEngine(provider ModelProvider, maxDepth, retryBudget int) *WorkflowEngine {
	policy := NewConfidencePolicy(0.75, 0.50, maxDepth)
	return NewWorkflowEngine(provider, policy, zap.NewNop(), time.Second, retryBudget, time.Millisecond)
}

func TestRunHighConfidenceFirstPass(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{attempt: attemptWith(CategorySpam, 0.95)},
	}}
	engine := newTestEngine(provider, 2, 2)

	result, err := engine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Category != CategorySpam {
		t.Errorf("Category = %q, want %q", result.Category, CategorySpam)
	}
	if result.Decision != AcceptedHighConfidence {
		t.Errorf("Decision = %q, want %q", result.Decision, AcceptedHighConfidence)
	}
	if len(result.PathTaken) != 1 || result.PathTaken[0] != AttemptInitial {
		t.Errorf("PathTaken = %v, want [INITIAL]", result.PathTaken)
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.calls))
	}
}

func TestRunEscalationRecovers(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{attempt: attemptWith(CategoryPromotional, 0.30)},
		{attempt: attemptWith(CategoryPhishing, 0.80)},
	}}
	engine := newTestEngine(provider, 2, 2)

	result, err := engine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Category != CategoryPhishing {
		t.Errorf("Category = %q, want %q (escalation supersedes)", result.Category, CategoryPhishing)
	}
	if result.Confidence != 0.80 {
		t.Errorf("Confidence = %v, want 0.80", result.Confidence)
	}
	if result.Decision != AcceptedAfterEscalation {
		t.Errorf("Decision = %q, want %q", result.Decision, AcceptedAfterEscalation)
	}
	wantPath := []AttemptKind{AttemptInitial, AttemptEscalated}
	if len(result.PathTaken) != 2 || result.PathTaken[0] != wantPath[0] || result.PathTaken[1] != wantPath[1] {
		t.Errorf("PathTaken = %v, want %v", result.PathTaken, wantPath)
	}

	// The second call must carry the first attempt for the re-analysis prompt
	second := provider.calls[1]
	if second.Mode != AttemptEscalated {
		t.Errorf("second call mode = %s, want ESCALATED", second.Mode)
	}
	if second.Previous == nil || second.Previous.Category != CategoryPromotional {
		t.Errorf("second call previous = %+v, want first attempt", second.Previous)
	}
}

func TestRunMaxDepthExhausted(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{attempt: attemptWith(CategoryOther, 0.20)},
	}}
	engine := newTestEngine(provider, 2, 2)

	result, err := engine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Decision != AcceptedLowConfidenceFinal {
		t.Errorf("Decision = %q, want %q", result.Decision, AcceptedLowConfidenceFinal)
	}
	if len(result.PathTaken) != 3 {
		t.Errorf("PathTaken length = %d, want 3 (initial plus two escalations)", len(result.PathTaken))
	}
	if result.Confidence != 0.20 {
		t.Errorf("Confidence = %v, want last attempt's 0.20", result.Confidence)
	}
	if len(provider.calls) != 3 {
		t.Errorf("provider calls = %d, want 3", len(provider.calls))
	}
}

func TestRunPathNeverExceedsMaxDepthPlusOne(t *testing.T) {
	for maxDepth := 0; maxDepth <= 3; maxDepth++ {
		provider := &scriptedProvider{script: []scriptedCall{
			{attempt: attemptWith(CategoryOther, 0.10)},
		}}
		engine := newTestEngine(provider, maxDepth, 0)

		result, err := engine.Run(context.Background(), testInput())
		if err != nil {
			t.Fatalf("maxDepth %d: Run() error = %v", maxDepth, err)
		}
		if len(result.PathTaken) != maxDepth+1 {
			t.Errorf("maxDepth %d: PathTaken length = %d, want %d",
				maxDepth, len(result.PathTaken), maxDepth+1)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	script := []scriptedCall{
		{attempt: attemptWith(CategoryPromotional, 0.40)},
		{attempt: attemptWith(CategorySpam, 0.85)},
	}

	var first *ClassificationResult
	for i := 0; i < 3; i++ {
		provider := &scriptedProvider{script: script}
		engine := newTestEngine(provider, 2, 2)
		result, err := engine.Run(context.Background(), testInput())
		if err != nil {
			t.Fatalf("run %d: Run() error = %v", i, err)
		}
		if first == nil {
			first = result
			continue
		}
		if result.Category != first.Category ||
			result.Confidence != first.Confidence ||
			result.Decision != first.Decision ||
			len(result.PathTaken) != len(first.PathTaken) {
			t.Errorf("run %d diverged: got %s/%v/%s, want %s/%v/%s",
				i, result.Category, result.Confidence, result.Decision,
				first.Category, first.Confidence, first.Decision)
		}
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{err: fmt.Errorf("call failed: %w", ErrProviderTimeout)},
		{err: fmt.Errorf("call failed: %w", ErrProviderUnavailable)},
		{attempt: attemptWith(CategoryTransactional, 0.90)},
	}}
	engine := newTestEngine(provider, 2, 2)

	result, err := engine.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Retries repeat the same attempt, they never consume escalation depth
	if len(result.PathTaken) != 1 {
		t.Errorf("PathTaken length = %d, want 1", len(result.PathTaken))
	}
	if result.Decision != AcceptedHighConfidence {
		t.Errorf("Decision = %q, want %q", result.Decision, AcceptedHighConfidence)
	}
	if len(provider.calls) != 3 {
		t.Errorf("provider calls = %d, want 3", len(provider.calls))
	}
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{err: fmt.Errorf("call failed: %w", ErrProviderTimeout)},
	}}
	engine := newTestEngine(provider, 2, 2)

	_, err := engine.Run(context.Background(), testInput())
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}

	var wfErr *WorkflowError
	if !errors.As(err, &wfErr) {
		t.Fatalf("error = %v, want *WorkflowError", err)
	}
	if wfErr.EmailID != "test-001" {
		t.Errorf("EmailID = %q, want test-001", wfErr.EmailID)
	}
	if wfErr.Calls != 3 {
		t.Errorf("Calls = %d, want 3 (one try plus two retries)", wfErr.Calls)
	}
	if !errors.Is(err, ErrProviderTimeout) {
		t.Errorf("error chain should retain ErrProviderTimeout, got %v", err)
	}
}

func TestRunMalformedResponseNotRetried(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{err: fmt.Errorf("bad payload: %w", ErrProviderMalformedResponse)},
	}}
	engine := newTestEngine(provider, 2, 2)

	_, err := engine.Run(context.Background(), testInput())
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	if !errors.Is(err, ErrProviderMalformedResponse) {
		t.Errorf("error chain should retain ErrProviderMalformedResponse, got %v", err)
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider calls = %d, want 1 (malformed is never retried)", len(provider.calls))
	}
}

func TestRunUnknownErrorAborts(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{err: errors.New("something unexpected")},
	}}
	engine := newTestEngine(provider, 2, 2)

	_, err := engine.Run(context.Background(), testInput())
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider calls = %d, want 1 (unknown errors abort immediately)", len(provider.calls))
	}
}

func TestRunCancelledContext(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedCall{
		{attempt: attemptWith(CategorySpam, 0.95)},
	}}
	engine := newTestEngine(provider, 2, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, testInput())
	if err == nil {
		t.Fatal("Run() expected error for cancelled context, got nil")
	}
	if !errors.Is(err, ErrRequestTimedOut) {
		t.Errorf("error = %v, want ErrRequestTimedOut in chain", err)
	}
	if len(provider.calls) != 0 {
		t.Errorf("provider calls = %d, want 0", len(provider.calls))
	}
}
