package gate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionControl configures the pre-flight pipeline. It is explicit
// state owned by the Gatekeeper instance and is replaced atomically as a
// whole; in-flight evaluations complete under the snapshot they started
// with.
type ExecutionControl struct {
	// Stage toggles.
	EnableCircuitBreakerCheck      bool `json:"enable_circuit_breaker_check" yaml:"enable_circuit_breaker_check"`
	EnablePreflightDriftPrediction bool `json:"enable_preflight_drift_prediction" yaml:"enable_preflight_drift_prediction"`
	EnableBaselineComparison       bool `json:"enable_baseline_comparison" yaml:"enable_baseline_comparison"`
	EnableMCPValidation            bool `json:"enable_mcp_validation" yaml:"enable_mcp_validation"`

	// Behavior flags.
	HoldOnDriftPrediction       bool `json:"hold_on_drift_prediction" yaml:"hold_on_drift_prediction"`
	HoldOnLowConfidence         bool `json:"hold_on_low_confidence" yaml:"hold_on_low_confidence"`
	HoldOnForbiddenWithOverride bool `json:"hold_on_forbidden_with_override" yaml:"hold_on_forbidden_with_override"`
	HaltOnCriticalDrift         bool `json:"halt_on_critical_drift" yaml:"halt_on_critical_drift"`
	HaltOnHighDrift             bool `json:"halt_on_high_drift" yaml:"halt_on_high_drift"`

	// Thresholds.
	DriftPredictionThreshold   float64 `json:"drift_prediction_threshold" yaml:"drift_prediction_threshold"`
	BaselineDeviationThreshold float64 `json:"baseline_deviation_threshold" yaml:"baseline_deviation_threshold"`
	ConfidenceThreshold        float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// HoldTimeoutMS is the hold deadline in milliseconds from creation.
	// Zero means holds expire as soon as they are queried.
	HoldTimeoutMS int64 `json:"hold_timeout_ms" yaml:"hold_timeout_ms"`

	// MCPValidationTools lists glob-style tool name patterns that are
	// always routed through the hold stage, regardless of drift score.
	MCPValidationTools []string `json:"mcp_validation_tools" yaml:"mcp_validation_tools"`
}

// DefaultControl returns the control configuration used when none is
// supplied: all stages on, hold-on-drift on, automatic halting off.
func DefaultControl() ExecutionControl {
	return ExecutionControl{
		EnableCircuitBreakerCheck:      true,
		EnablePreflightDriftPrediction: true,
		EnableBaselineComparison:       true,
		EnableMCPValidation:            true,
		HoldOnDriftPrediction:          true,
		DriftPredictionThreshold:       0.7,
		BaselineDeviationThreshold:     0.9,
		ConfidenceThreshold:            0.5,
		HoldTimeoutMS:                  (5 * time.Minute).Milliseconds(),
	}
}

// ErrInvalidControl is wrapped by all control validation failures.
var ErrInvalidControl = errors.New("invalid execution control config")

// Validate rejects malformed configurations synchronously; a bad config
// never silently falls back to defaults.
func (c *ExecutionControl) Validate() error {
	if c.DriftPredictionThreshold < 0 || c.DriftPredictionThreshold > 1 {
		return fmt.Errorf("%w: drift_prediction_threshold %v outside [0, 1]", ErrInvalidControl, c.DriftPredictionThreshold)
	}
	if c.BaselineDeviationThreshold < 0 || c.BaselineDeviationThreshold > 1 {
		return fmt.Errorf("%w: baseline_deviation_threshold %v outside [0, 1]", ErrInvalidControl, c.BaselineDeviationThreshold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold %v outside [0, 1]", ErrInvalidControl, c.ConfidenceThreshold)
	}
	if c.HoldTimeoutMS < 0 {
		return fmt.Errorf("%w: hold_timeout_ms must not be negative", ErrInvalidControl)
	}
	for i, p := range c.MCPValidationTools {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: mcp_validation_tools[%d] is empty", ErrInvalidControl, i)
		}
	}
	return nil
}

// HoldTimeout returns the hold deadline offset as a duration.
func (c *ExecutionControl) HoldTimeout() time.Duration {
	return time.Duration(c.HoldTimeoutMS) * time.Millisecond
}

// MatchesValidationTool reports whether the tool name matches any
// configured routing pattern.
func (c *ExecutionControl) MatchesValidationTool(tool string) bool {
	for _, pattern := range c.MCPValidationTools {
		if MatchTool(pattern, tool) {
			return true
		}
	}
	return false
}
