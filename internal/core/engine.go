package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// workflowPhase enumerates the engine's states. The escalation cycle is small
// and bounded, so tagged-state dispatch is used instead of a graph abstraction.
type workflowPhase int

const (
	phaseClassifying workflowPhase = iota
	phaseEvaluating
	phaseEscalating
	phaseFinalized
)

func (p workflowPhase) String() string {
	switch p {
	case phaseClassifying:
		return "classifying"
	case phaseEvaluating:
		return "evaluating"
	case phaseEscalating:
		return "escalating"
	case phaseFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// WorkflowEngine sequences classification attempts for one input: classify,
// evaluate confidence, escalate on high uncertainty, finalize. One engine
// instance serves concurrent runs; all per-run state lives in WorkflowState.
type WorkflowEngine struct {
	provider     ModelProvider
	policy       ConfidencePolicy
	logger       *zap.Logger
	callTimeout  time.Duration
	retryBudget  int
	retryBackoff time.Duration
}

// NewWorkflowEngine creates a new workflow engine
func NewWorkflowEngine(
	provider ModelProvider,
	policy ConfidencePolicy,
	logger *zap.Logger,
	callTimeout time.Duration,
	retryBudget int,
	retryBackoff time.Duration,
) *WorkflowEngine {
	return &WorkflowEngine{
		provider:     provider,
		policy:       policy,
		logger:       logger,
		callTimeout:  callTimeout,
		retryBudget:  retryBudget,
		retryBackoff: retryBackoff,
	}
}

// Run executes one workflow for the given input and returns the terminal
// result. Cancelling ctx stops the engine from scheduling further provider
// calls and surfaces ErrRequestTimedOut.
func (e *WorkflowEngine) Run(ctx context.Context, input *ClassificationInput) (*ClassificationResult, error) {
	start := time.Now()
	state := NewWorkflowState(input)
	mode := AttemptInitial
	var outcome PolicyOutcome

	phase := phaseClassifying
	for phase != phaseFinalized {
		if ctx.Err() != nil {
			e.logger.Warn("Workflow run cancelled",
				zap.String("email_id", input.EmailID),
				zap.String("phase", phase.String()))
			return nil, fmt.Errorf("run cancelled for email %s: %w", input.EmailID, ErrRequestTimedOut)
		}

		switch phase {
		case phaseClassifying:
			attempt, err := e.classifyWithRetry(ctx, state, mode)
			if err != nil {
				return nil, err
			}
			state.Append(attempt)
			e.logger.Info("Attempt recorded",
				zap.String("email_id", input.EmailID),
				zap.String("kind", string(attempt.Kind)),
				zap.String("category", attempt.Category),
				zap.Float64("confidence", attempt.Confidence),
				zap.Int("depth", state.Depth))
			phase = phaseEvaluating

		case phaseEvaluating:
			latest := state.Latest()
			// Escalation depth of the evaluated attempt: the first attempt
			// is evaluated at depth 0.
			outcome = e.policy.Decide(latest.Confidence, latest.Kind, state.Depth-1)
			e.logger.Debug("Policy decision",
				zap.String("email_id", input.EmailID),
				zap.Float64("confidence", latest.Confidence),
				zap.String("outcome", outcome.String()))
			if outcome == OutcomeEscalate {
				phase = phaseEscalating
			} else {
				phase = phaseFinalized
			}

		case phaseEscalating:
			// Transition marker only: no attempt is appended here. The next
			// classify call runs in escalated mode.
			mode = AttemptEscalated
			phase = phaseClassifying
		}
	}

	state.Finalize(outcome)
	return AssembleResult(state, time.Since(start))
}

// classifyWithRetry invokes the provider once with the given mode, retrying
// transient failures up to the retry budget with exponential backoff. Retries
// keep the same attempt kind and never consume escalation depth.
func (e *WorkflowEngine) classifyWithRetry(ctx context.Context, state *WorkflowState, mode AttemptKind) (*ClassificationAttempt, error) {
	req := &ClassificationRequest{
		Input:    state.Input,
		Mode:     mode,
		Previous: state.Latest(),
	}

	var lastErr error
	calls := 0
	for try := 0; try <= e.retryBudget; try++ {
		if try > 0 {
			backoff := e.retryBackoff << (try - 1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("run cancelled for email %s: %w", state.Input.EmailID, ErrRequestTimedOut)
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		attempt, err := e.provider.Classify(callCtx, req)
		cancel()
		calls++

		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			// The overall deadline went first; a cancelled run is never
			// reported as a provider failure.
			return nil, fmt.Errorf("run cancelled for email %s: %w", state.Input.EmailID, ErrRequestTimedOut)
		}
		if errors.Is(err, ErrProviderMalformedResponse) {
			// A response-shape bug, not a transient failure. Never retried.
			return nil, &WorkflowError{EmailID: state.Input.EmailID, Calls: calls, Err: err}
		}
		if !errors.Is(err, ErrProviderTimeout) && !errors.Is(err, ErrProviderUnavailable) {
			return nil, &WorkflowError{EmailID: state.Input.EmailID, Calls: calls, Err: err}
		}

		lastErr = err
		e.logger.Warn("Transient provider failure",
			zap.String("email_id", state.Input.EmailID),
			zap.String("mode", string(mode)),
			zap.Int("try", try),
			zap.Error(err))
	}

	return nil, &WorkflowError{EmailID: state.Input.EmailID, Calls: calls, Err: lastErr}
}
