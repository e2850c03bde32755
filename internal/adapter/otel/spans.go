package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "warden"

// StartDecisionSpan starts a span covering one pre-flight decision.
func StartDecisionSpan(ctx context.Context, agentID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gate.decide",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("tool.name", tool),
		),
	)
}

// EndDecisionSpan annotates and ends a decision span.
func EndDecisionSpan(span trace.Span, verdict, stage string) {
	span.SetAttributes(
		attribute.String("gate.verdict", verdict),
		attribute.String("gate.stage", stage),
	)
	span.End()
}
