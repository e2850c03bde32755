// Package audit defines the port for persisting gatekeeper decisions.
// The sink receives every decision after the fact; it is never consulted
// for the decision itself.
package audit

import (
	"context"

	"github.com/wardenhq/warden/internal/domain/gate"
)

// Sink receives one record per gatekeeper execution, regardless of
// verdict. Implementations must tolerate bursts; a failing sink is
// logged, never surfaced to the caller of Execute.
type Sink interface {
	Record(ctx context.Context, rec gate.DecisionRecord) error
}

// NopSink discards records. Used when no audit backend is configured.
type NopSink struct{}

func (NopSink) Record(context.Context, gate.DecisionRecord) error { return nil }

// Multi fans a record out to several sinks, returning the first error
// after attempting all of them.
type Multi []Sink

func (m Multi) Record(ctx context.Context, rec gate.DecisionRecord) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
