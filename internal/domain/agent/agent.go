// Package agent defines the domain model for per-agent circuit breaker
// state and behavioral history tracked by the drift engine.
package agent

import "time"

// Status is the circuit breaker state of an agent.
type Status string

const (
	StatusActive Status = "active"
	StatusHalted Status = "halted"
)

// Outcome records whether an operation was admitted by the gatekeeper.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Severity classifies a drift alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OperationEntry is one recorded operation. Immutable once appended.
type OperationEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Frame     string    `json:"frame"`
	Action    string    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
}

// Alert is generated when a recorded operation pushes the drift score
// across a configured threshold. Immutable once appended.
type Alert struct {
	Timestamp   time.Time `json:"timestamp"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

// Record is a point-in-time snapshot of an agent's registry state.
// History and alert slices are copies; mutating them does not affect
// the registry.
type Record struct {
	AgentID    string           `json:"agent_id"`
	Status     Status           `json:"status"`
	HaltReason string           `json:"halt_reason,omitempty"`
	DriftScore float64          `json:"drift_score"`
	History    []OperationEntry `json:"history,omitempty"`
	Alerts     []Alert          `json:"alerts,omitempty"`
}

// SystemStats aggregates registry-wide counters.
type SystemStats struct {
	AgentCount      int   `json:"agent_count"`
	HaltedCount     int   `json:"halted_count"`
	TotalOperations int64 `json:"total_operations"`
	TotalAlerts     int64 `json:"total_alerts"`
}
