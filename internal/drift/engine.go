package drift

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wardenhq/warden/internal/domain/agent"
)

// Config tunes the drift engine thresholds and history bounds.
type Config struct {
	HistoryCap        int     `yaml:"history_cap"`
	AlertCap          int     `yaml:"alert_cap"`
	MinSamples        int     `yaml:"min_samples"`
	AlertThreshold    float64 `yaml:"alert_threshold"`
	HighThreshold     float64 `yaml:"high_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// DefaultConfig returns the engine defaults used when a field is unset.
func DefaultConfig() Config {
	return Config{
		HistoryCap:        DefaultHistoryCap,
		AlertCap:          DefaultAlertCap,
		MinSamples:        10,
		AlertThreshold:    0.5,
		HighThreshold:     0.75,
		CriticalThreshold: 0.9,
	}
}

// HaltPolicy controls whether the engine halts an agent automatically
// when a recorded operation pushes its drift score over a threshold.
// Automatic transitions only ever go active -> halted; resuming is
// always an explicit operator act.
type HaltPolicy struct {
	OnHigh     bool
	OnCritical bool
}

// Engine owns the agent registry: it records operations, recomputes drift
// scores, raises alerts, and decides halt transitions. All operations are
// safe for concurrent use; operations on distinct agents do not contend.
type Engine struct {
	reg    *registry
	cfg    Config
	policy atomic.Pointer[HaltPolicy]
	now    func() time.Time
}

// NewEngine creates an Engine. Zero config fields fall back to
// DefaultConfig values.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.HistoryCap < 1 {
		cfg.HistoryCap = def.HistoryCap
	}
	if cfg.AlertCap < 1 {
		cfg.AlertCap = def.AlertCap
	}
	if cfg.MinSamples < 2 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = def.AlertThreshold
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = def.HighThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = def.CriticalThreshold
	}
	e := &Engine{
		reg: newRegistry(cfg.HistoryCap, cfg.AlertCap),
		cfg: cfg,
		now: time.Now,
	}
	e.policy.Store(&HaltPolicy{})
	return e
}

// SetHaltPolicy atomically replaces the automatic halt policy.
func (e *Engine) SetHaltPolicy(p HaltPolicy) {
	e.policy.Store(&p)
}

// RecordOperation appends an operation to the agent's history, recomputes
// the drift score, and applies alert and halt thresholds. Unknown agents
// are created on demand; the call never fails.
func (e *Engine) RecordOperation(agentID, frame, action string, success bool) {
	outcome := agent.OutcomeSuccess
	if !success {
		outcome = agent.OutcomeFailure
	}
	now := e.now()

	st := e.reg.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.history.push(agent.OperationEntry{
		Timestamp: now,
		Frame:     frame,
		Action:    action,
		Outcome:   outcome,
	})
	e.reg.totalOps.Add(1)

	prev := st.driftScore
	score := behaviorScore(st.history.snapshot(), e.cfg.MinSamples)
	st.driftScore = score

	if score >= e.cfg.AlertThreshold && prev < e.cfg.AlertThreshold {
		e.appendAlertLocked(st, e.severityFor(score), fmt.Sprintf(
			"drift score %.3f crossed alert threshold %.2f", score, e.cfg.AlertThreshold))
	}

	if st.status == agent.StatusActive {
		p := e.policy.Load()
		switch {
		case p.OnCritical && score >= e.cfg.CriticalThreshold:
			e.haltLocked(st, agentID, fmt.Sprintf(
				"drift score %.3f exceeded critical threshold %.2f", score, e.cfg.CriticalThreshold))
		case p.OnHigh && score >= e.cfg.HighThreshold:
			e.haltLocked(st, agentID, fmt.Sprintf(
				"drift score %.3f exceeded high threshold %.2f", score, e.cfg.HighThreshold))
		}
	}
}

// HaltAgent trips the circuit breaker for an agent. Halting an
// already-halted agent is a no-op that updates the reason.
func (e *Engine) HaltAgent(agentID, reason string) {
	st := e.reg.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == agent.StatusHalted {
		st.haltReason = reason
		return
	}
	e.haltLocked(st, agentID, reason)
}

// ResumeAgent clears the circuit breaker. Resuming an active agent is a
// no-op.
func (e *Engine) ResumeAgent(agentID string) {
	st := e.reg.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == agent.StatusActive {
		return
	}
	st.status = agent.StatusActive
	st.haltReason = ""
	slog.Info("agent resumed", "agent_id", agentID)
}

// HaltState is the circuit breaker fast path: status and reason only, no
// history scan, no entry creation for unseen agents.
func (e *Engine) HaltState(agentID string) (halted bool, reason string) {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return false, ""
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status == agent.StatusHalted, st.haltReason
}

// AgentStatus returns a snapshot of the agent's breaker state and drift
// score. Unknown identifiers report ok=false; a status query is routine
// and does not create registry entries.
func (e *Engine) AgentStatus(agentID string) (agent.Record, bool) {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return agent.Record{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return agent.Record{
		AgentID:    agentID,
		Status:     st.status,
		HaltReason: st.haltReason,
		DriftScore: st.driftScore,
	}, true
}

// DriftHistory returns a copy of the agent's operation history, oldest
// first. Unknown agents yield nil.
func (e *Engine) DriftHistory(agentID string) []agent.OperationEntry {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.snapshot()
}

// AgentAlerts returns a copy of the agent's alerts, oldest first.
func (e *Engine) AgentAlerts(agentID string) []agent.Alert {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.alerts.snapshot()
}

// PredictScore estimates the drift score the agent would have if the
// given operation were recorded, without recording it. The prediction
// assumes the operation succeeds; outcome barely moves the score for a
// single sample.
func (e *Engine) PredictScore(agentID, frame, action string) float64 {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return 0
	}
	st.mu.Lock()
	ops := st.history.snapshot()
	st.mu.Unlock()

	if len(ops) == e.cfg.HistoryCap {
		ops = ops[1:] // the ring would evict the oldest entry
	}
	ops = append(ops, agent.OperationEntry{
		Timestamp: e.now(),
		Frame:     frame,
		Action:    action,
		Outcome:   agent.OutcomeSuccess,
	})
	return behaviorScore(ops, e.cfg.MinSamples)
}

// BaselineDeviation measures how far the (frame, action) pair deviates
// from the agent's historically observed pairs, in [0, 1].
func (e *Engine) BaselineDeviation(agentID, frame, action string) float64 {
	st, ok := e.reg.lookup(agentID)
	if !ok {
		return 0
	}
	st.mu.Lock()
	ops := st.history.snapshot()
	st.mu.Unlock()
	return pairDeviation(ops, frame, action, e.cfg.MinSamples)
}

// SystemStats returns registry-wide counters.
func (e *Engine) SystemStats() agent.SystemStats {
	return e.reg.stats()
}

// Reset clears all agent state. Used for process reinitialization and by
// tests.
func (e *Engine) Reset() {
	e.reg.reset()
}

func (e *Engine) severityFor(score float64) agent.Severity {
	switch {
	case score >= e.cfg.CriticalThreshold:
		return agent.SeverityCritical
	case score >= e.cfg.HighThreshold:
		return agent.SeverityHigh
	default:
		return agent.SeverityWarning
	}
}

// appendAlertLocked must be called with st.mu held.
func (e *Engine) appendAlertLocked(st *agentState, sev agent.Severity, desc string) {
	st.alerts.push(agent.Alert{Timestamp: e.now(), Severity: sev, Description: desc})
	e.reg.totalAlerts.Add(1)
}

// haltLocked must be called with st.mu held and st.status == active.
func (e *Engine) haltLocked(st *agentState, agentID, reason string) {
	st.status = agent.StatusHalted
	st.haltReason = reason
	e.appendAlertLocked(st, agent.SeverityCritical, "agent halted: "+reason)
	slog.Warn("agent halted", "agent_id", agentID, "reason", reason)
}
