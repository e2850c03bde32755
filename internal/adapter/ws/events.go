package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventDecision     = "gate.decision"
	EventHoldCreated  = "hold.created"
	EventHoldResolved = "hold.resolved"
	EventAgentHalted  = "agent.halted"
	EventAgentResumed = "agent.resumed"
)

// DecisionEvent is broadcast after every gatekeeper execution.
type DecisionEvent struct {
	DecisionID string `json:"decision_id"`
	AgentID    string `json:"agent_id"`
	Tool       string `json:"tool"`
	Verdict    string `json:"verdict"`
	Stage      string `json:"stage,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// HoldEvent is broadcast when a hold is created or resolved.
type HoldEvent struct {
	HoldID  string `json:"hold_id"`
	AgentID string `json:"agent_id"`
	Tool    string `json:"tool,omitempty"`
	State   string `json:"state"`
	Actor   string `json:"actor,omitempty"`
}

// AgentEvent is broadcast on explicit halt/resume transitions.
type AgentEvent struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and
// broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
