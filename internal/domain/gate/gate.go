// Package gate defines the domain model for the execution gatekeeper:
// execution requests, pre-flight verdicts, and the control configuration
// that governs the check pipeline.
package gate

import (
	"errors"
	"time"

	"github.com/wardenhq/warden/internal/domain/hold"
)

// Verdict is the composite outcome of the pre-flight pipeline.
// Blocked and Held are policy outcomes, not errors.
type Verdict string

const (
	VerdictAllowed Verdict = "allowed"
	VerdictBlocked Verdict = "blocked"
	VerdictHeld    Verdict = "held"
)

// Stage identifies a pre-flight pipeline stage.
type Stage string

const (
	StageCircuitBreaker  Stage = "circuit_breaker"
	StageDriftPrediction Stage = "drift_prediction"
	StageBaseline        Stage = "baseline_comparison"
	StageHoldRouting     Stage = "hold_routing"
)

// ExecutionRequest is a tool call submitted for pre-flight authorization.
// Frame is an opaque, externally validated token; the gatekeeper uses it
// only as a categorical feature.
type ExecutionRequest struct {
	AgentID   string         `json:"agent_id"`
	Frame     string         `json:"frame,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`

	// Confidence is an optional caller-supplied confidence estimate in
	// (0, 1]. Zero means not provided.
	Confidence float64 `json:"confidence,omitempty"`

	// ForbiddenOverride marks a call that a forbidden-action rule would
	// reject but the caller is explicitly overriding.
	ForbiddenOverride bool `json:"forbidden_override,omitempty"`
}

// ErrInvalidRequest is wrapped by all request validation failures.
var ErrInvalidRequest = errors.New("invalid execution request")

// Validate rejects malformed requests. Policy outcomes never surface
// here; only structurally bad input does.
func (r *ExecutionRequest) Validate() error {
	if r.AgentID == "" {
		return errors.Join(ErrInvalidRequest, errors.New("agent_id is required"))
	}
	if r.Tool == "" {
		return errors.Join(ErrInvalidRequest, errors.New("tool is required"))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.Join(ErrInvalidRequest, errors.New("confidence must be in [0, 1]"))
	}
	return nil
}

// PreFlightCheck records the outcome of a single pipeline stage.
type PreFlightCheck struct {
	Stage  Stage   `json:"stage"`
	Passed bool    `json:"passed"`
	Reason string  `json:"reason,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// ExecutionResult is the structured decision returned by the gatekeeper.
// For VerdictHeld, Hold carries the created request; resolution happens
// asynchronously through the hold manager.
type ExecutionResult struct {
	Verdict Verdict          `json:"verdict"`
	Stage   Stage            `json:"stage,omitempty"` // stage that produced the verdict; empty when allowed
	Reason  string           `json:"reason,omitempty"`
	Checks  []PreFlightCheck `json:"checks"`
	Hold    *hold.Request    `json:"hold,omitempty"`
}

// DecisionRecord is what the gatekeeper emits to the audit sink and the
// event hub after every execution, regardless of verdict.
type DecisionRecord struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Tool      string    `json:"tool"`
	Frame     string    `json:"frame,omitempty"`
	Verdict   Verdict   `json:"verdict"`
	Stage     Stage     `json:"stage,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	HoldID    string    `json:"hold_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
