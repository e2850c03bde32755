package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "warden"

// Metrics holds all Warden metric instruments. A nil *Metrics is valid
// and records nothing, so callers never have to branch on telemetry
// being enabled.
type Metrics struct {
	Decisions     metric.Int64Counter
	DecisionTime  metric.Float64Histogram
	HoldsCreated  metric.Int64Counter
	HoldsResolved metric.Int64Counter
	AgentsHalted  metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Decisions, err = meter.Int64Counter("warden.decisions",
		metric.WithDescription("Number of execution decisions, by verdict"))
	if err != nil {
		return nil, err
	}

	m.DecisionTime, err = meter.Float64Histogram("warden.decision.duration_ms",
		metric.WithDescription("Decision pipeline latency in milliseconds"))
	if err != nil {
		return nil, err
	}

	m.HoldsCreated, err = meter.Int64Counter("warden.holds.created",
		metric.WithDescription("Number of approval holds created"))
	if err != nil {
		return nil, err
	}

	m.HoldsResolved, err = meter.Int64Counter("warden.holds.resolved",
		metric.WithDescription("Number of approval holds resolved, by state"))
	if err != nil {
		return nil, err
	}

	m.AgentsHalted, err = meter.Int64Counter("warden.agents.halted",
		metric.WithDescription("Number of agent halts"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveDecision records one decision with its verdict and latency.
func (m *Metrics) ObserveDecision(ctx context.Context, verdict string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("verdict", verdict))
	m.Decisions.Add(ctx, 1, attrs)
	m.DecisionTime.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

// ObserveHoldCreated records the creation of an approval hold.
func (m *Metrics) ObserveHoldCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.HoldsCreated.Add(ctx, 1)
}

// ObserveHoldResolved records one hold reaching a terminal state.
func (m *Metrics) ObserveHoldResolved(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.HoldsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// ObserveAgentHalted records one agent halt.
func (m *Metrics) ObserveAgentHalted(ctx context.Context) {
	if m == nil {
		return
	}
	m.AgentsHalted.Add(ctx, 1)
}
