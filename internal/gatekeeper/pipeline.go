package gatekeeper

import (
	"fmt"
	"strconv"

	"github.com/wardenhq/warden/internal/domain/gate"
)

// runPipeline evaluates the ordered pre-flight checks under a single
// control snapshot, short-circuiting on the first hard block. Routing
// flags raised by the drift-prediction and baseline stages feed the hold
// stage; the circuit breaker is always first and never scans history.
func (g *Gatekeeper) runPipeline(req *gate.ExecutionRequest, ctl *gate.ExecutionControl) gate.ExecutionResult {
	checks := make([]gate.PreFlightCheck, 0, 4)

	// 1. Circuit breaker: the fast path for an already-stopped agent.
	if ctl.EnableCircuitBreakerCheck {
		if halted, reason := g.engine.HaltState(req.AgentID); halted {
			checks = append(checks, gate.PreFlightCheck{
				Stage:  gate.StageCircuitBreaker,
				Reason: reason,
			})
			return gate.ExecutionResult{
				Verdict: gate.VerdictBlocked,
				Stage:   gate.StageCircuitBreaker,
				Reason:  reason,
				Checks:  checks,
			}
		}
		checks = append(checks, gate.PreFlightCheck{Stage: gate.StageCircuitBreaker, Passed: true})
	}

	holdFlag := false
	holdReason := ""
	flag := func(reason string) {
		if !holdFlag {
			holdFlag = true
			holdReason = reason
		}
	}

	// 2. Drift prediction: what would the score become if this operation
	// were recorded?
	if ctl.EnablePreflightDriftPrediction {
		predicted := g.engine.PredictScore(req.AgentID, req.Frame, req.Tool)
		check := gate.PreFlightCheck{
			Stage:  gate.StageDriftPrediction,
			Passed: true,
			Score:  predicted,
		}
		if predicted > ctl.DriftPredictionThreshold && ctl.HoldOnDriftPrediction {
			check.Passed = false
			check.Reason = fmt.Sprintf("predicted drift score %.3f exceeds threshold %.2f",
				predicted, ctl.DriftPredictionThreshold)
			flag(check.Reason)
		}
		checks = append(checks, check)
	}

	// 3. Baseline comparison: is this (tool, frame) pair something the
	// agent has ever done before?
	if ctl.EnableBaselineComparison {
		deviation := g.engine.BaselineDeviation(req.AgentID, req.Frame, req.Tool)
		check := gate.PreFlightCheck{
			Stage:  gate.StageBaseline,
			Passed: true,
			Score:  deviation,
		}
		if deviation > ctl.BaselineDeviationThreshold {
			check.Passed = false
			check.Reason = fmt.Sprintf("baseline deviation %.3f exceeds threshold %.2f",
				deviation, ctl.BaselineDeviationThreshold)
			flag(check.Reason)
		}
		checks = append(checks, check)
	}

	// Behavior flags routed through the hold stage.
	if ctl.HoldOnLowConfidence && req.Confidence > 0 && req.Confidence < ctl.ConfidenceThreshold {
		flag(fmt.Sprintf("caller confidence %.2f below threshold %.2f",
			req.Confidence, ctl.ConfidenceThreshold))
	}
	if ctl.HoldOnForbiddenWithOverride && req.ForbiddenOverride {
		flag("forbidden action invoked with explicit override")
	}

	// 4. Pattern-based hold routing. Pattern matches apply only when MCP
	// validation is enabled; flags raised above always route.
	if ctl.EnableMCPValidation && !holdFlag && g.matchesValidationTool(ctl, req.Tool) {
		flag(fmt.Sprintf("tool %q matches a mandatory-review pattern", req.Tool))
	}

	if holdFlag {
		h := g.holds.Create(req.AgentID, req.Tool, req.Arguments, ctl.HoldTimeout())
		checks = append(checks, gate.PreFlightCheck{
			Stage:  gate.StageHoldRouting,
			Reason: holdReason,
		})
		return gate.ExecutionResult{
			Verdict: gate.VerdictHeld,
			Stage:   gate.StageHoldRouting,
			Reason:  holdReason,
			Checks:  checks,
			Hold:    &h,
		}
	}
	checks = append(checks, gate.PreFlightCheck{Stage: gate.StageHoldRouting, Passed: true})

	return gate.ExecutionResult{
		Verdict: gate.VerdictAllowed,
		Checks:  checks,
	}
}

// matchesValidationTool answers "does any routing pattern match this
// tool", consulting the match cache when one is configured.
func (g *Gatekeeper) matchesValidationTool(ctl *gate.ExecutionControl, tool string) bool {
	if g.cache == nil {
		return ctl.MatchesValidationTool(tool)
	}
	key := strconv.FormatUint(g.gen.Load(), 10) + "|" + tool
	if matched, ok := g.cache.Get(key); ok {
		return matched
	}
	matched := ctl.MatchesValidationTool(tool)
	g.cache.Set(key, matched)
	return matched
}
