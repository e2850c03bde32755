// Package broadcast defines the port for broadcasting real-time gate
// events to connected operator clients.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients. Delivery
// is best-effort: a slow subscriber must never block decision latency.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop drops all events. Used when no event hub is configured.
type Nop struct{}

func (Nop) BroadcastEvent(context.Context, string, any) {}
