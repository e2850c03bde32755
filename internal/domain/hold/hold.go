// Package hold defines the domain model for pending human-approval
// requests. A hold suspends a specific tool invocation until an operator
// approves or rejects it, or its deadline passes.
package hold

import "time"

// State is the lifecycle state of a hold request.
// Pending is the only non-terminal state; once a request reaches
// Approved, Rejected, or Expired it never transitions again.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateExpired  State = "expired"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s != StatePending
}

// Request is one routed tool call awaiting human approval.
type Request struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Deadline   time.Time      `json:"deadline"`
	State      State          `json:"state"`
	ResolvedAt time.Time      `json:"resolved_at,omitzero"`
	Actor      string         `json:"actor,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}
