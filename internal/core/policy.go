package core

// PolicyOutcome is the routing decision for a single evaluated attempt
type PolicyOutcome int

const (
	// OutcomeAccept accepts the attempt as the final classification
	OutcomeAccept PolicyOutcome = iota
	// OutcomeEscalate requests a more thorough re-analysis pass
	OutcomeEscalate
	// OutcomeRejectMaxDepth accepts the attempt as final because no escalation
	// depth remains, flagging the result as low-confidence
	OutcomeRejectMaxDepth
)

func (o PolicyOutcome) String() string {
	switch o {
	case OutcomeAccept:
		return "accept"
	case OutcomeEscalate:
		return "escalate"
	case OutcomeRejectMaxDepth:
		return "reject_max_depth"
	default:
		return "unknown"
	}
}

// ConfidencePolicy maps a confidence score to a routing outcome. It is pure:
// no side effects, no clock, no provider access.
type ConfidencePolicy struct {
	HighThreshold float64
	LowThreshold  float64
	MaxDepth      int
}

// NewConfidencePolicy creates a policy with the given thresholds
func NewConfidencePolicy(high, low float64, maxDepth int) ConfidencePolicy {
	return ConfidencePolicy{
		HighThreshold: high,
		LowThreshold:  low,
		MaxDepth:      maxDepth,
	}
}

// Decide routes one evaluated attempt. depth is the number of escalations
// already performed before the attempt being evaluated, so the first attempt
// is evaluated at depth 0.
//
// Mid-band confidence (low <= c < high) is accepted without re-analysis;
// escalation is reserved for high-uncertainty results only.
func (p ConfidencePolicy) Decide(confidence float64, kind AttemptKind, depth int) PolicyOutcome {
	if confidence >= p.HighThreshold {
		return OutcomeAccept
	}
	if confidence >= p.LowThreshold {
		return OutcomeAccept
	}
	if depth < p.MaxDepth {
		return OutcomeEscalate
	}
	return OutcomeRejectMaxDepth
}
