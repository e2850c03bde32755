// Package gatekeeper implements the pre-flight authorization pipeline
// that sits between autonomous agents and their tool executors. Every
// tool call is checked against the agent's circuit breaker, predicted
// drift, behavioral baseline, and pattern-based hold routing before a
// verdict is rendered.
package gatekeeper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	otelad "github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain/gate"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/hold"
	"github.com/wardenhq/warden/internal/port/audit"
	"github.com/wardenhq/warden/internal/port/broadcast"
)

// MatchCache caches glob pattern match results for the hold routing
// stage. Keys embed the control config generation, so a config swap
// naturally invalidates prior entries.
type MatchCache interface {
	Get(key string) (matched, ok bool)
	Set(key string, matched bool)
}

// emitCap bounds the decision fan-out queue. A slow audit sink or event
// hub drops records rather than blocking Execute.
const emitCap = 1024

type emission struct {
	rec  gate.DecisionRecord
	held bool
}

// Gatekeeper is the public entry point of the execution-authorization
// layer. It is safe for concurrent use by many callers.
type Gatekeeper struct {
	engine  *drift.Engine
	holds   *hold.Manager
	control atomic.Pointer[gate.ExecutionControl]
	gen     atomic.Uint64 // control config generation, for cache keys

	sink    audit.Sink
	hub     broadcast.Broadcaster
	metrics *otelad.Metrics
	cache   MatchCache

	events  chan emission
	dropped atomic.Int64
	wg      sync.WaitGroup

	now func() time.Time
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithAuditSink sets the decision audit sink.
func WithAuditSink(s audit.Sink) Option {
	return func(g *Gatekeeper) { g.sink = s }
}

// WithBroadcaster sets the real-time event hub.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(g *Gatekeeper) { g.hub = b }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *otelad.Metrics) Option {
	return func(g *Gatekeeper) { g.metrics = m }
}

// WithMatchCache sets a cache for pattern match results.
func WithMatchCache(c MatchCache) Option {
	return func(g *Gatekeeper) { g.cache = c }
}

// New creates a Gatekeeper over the given engine and hold manager with
// the default control configuration. The decision fan-out worker runs
// until Close is called.
func New(engine *drift.Engine, holds *hold.Manager, opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		engine: engine,
		holds:  holds,
		sink:   audit.NopSink{},
		hub:    broadcast.Nop{},
		events: make(chan emission, emitCap),
		now:    time.Now,
	}
	ctl := gate.DefaultControl()
	g.control.Store(&ctl)
	g.applyHaltPolicy(&ctl)

	for _, opt := range opts {
		opt(g)
	}

	g.wg.Add(1)
	go g.fanout()
	return g
}

// Execute runs the pre-flight pipeline for one tool call and returns a
// structured decision. Blocked and Held are successful outcomes; the
// error return is reserved for malformed input. The operation is
// recorded into the drift engine regardless of verdict, so blocked and
// held attempts still shape future scoring.
func (g *Gatekeeper) Execute(ctx context.Context, req gate.ExecutionRequest) (gate.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return gate.ExecutionResult{}, err
	}

	start := time.Now()
	ctx, span := otelad.StartDecisionSpan(ctx, req.AgentID, req.Tool)
	ctl := g.control.Load()

	res := g.runPipeline(&req, ctl)

	g.engine.RecordOperation(req.AgentID, req.Frame, req.Tool, res.Verdict == gate.VerdictAllowed)

	rec := gate.DecisionRecord{
		ID:        uuid.NewString(),
		AgentID:   req.AgentID,
		Tool:      req.Tool,
		Frame:     req.Frame,
		Verdict:   res.Verdict,
		Stage:     res.Stage,
		Reason:    res.Reason,
		Timestamp: g.now(),
	}
	if res.Hold != nil {
		rec.HoldID = res.Hold.ID
	}
	g.emit(emission{rec: rec, held: res.Verdict == gate.VerdictHeld})

	if res.Verdict == gate.VerdictHeld {
		g.metrics.ObserveHoldCreated(ctx)
	}
	g.metrics.ObserveDecision(ctx, string(res.Verdict), time.Since(start))
	otelad.EndDecisionSpan(span, string(res.Verdict), string(res.Stage))
	return res, nil
}

// SetControl validates and atomically replaces the active control
// configuration. Evaluations already in flight complete under the
// snapshot they loaded.
func (g *Gatekeeper) SetControl(ctl gate.ExecutionControl) error {
	if err := ctl.Validate(); err != nil {
		return err
	}
	g.control.Store(&ctl)
	g.gen.Add(1)
	g.applyHaltPolicy(&ctl)
	slog.Info("execution control config replaced",
		"mcp_validation_tools", len(ctl.MCPValidationTools),
		"hold_timeout_ms", ctl.HoldTimeoutMS,
	)
	return nil
}

// Control returns a copy of the active control configuration.
func (g *Gatekeeper) Control() gate.ExecutionControl {
	return *g.control.Load()
}

// DroppedEmissions reports how many decision records were dropped
// because the fan-out queue was full.
func (g *Gatekeeper) DroppedEmissions() int64 {
	return g.dropped.Load()
}

// Close drains the decision fan-out. Execute must not be called after
// Close.
func (g *Gatekeeper) Close() {
	close(g.events)
	g.wg.Wait()
}

func (g *Gatekeeper) applyHaltPolicy(ctl *gate.ExecutionControl) {
	g.engine.SetHaltPolicy(drift.HaltPolicy{
		OnHigh:     ctl.HaltOnHighDrift,
		OnCritical: ctl.HaltOnCriticalDrift,
	})
}

// emit enqueues a decision for asynchronous delivery to the audit sink
// and the event hub. Drops when the queue is full.
func (g *Gatekeeper) emit(e emission) {
	select {
	case g.events <- e:
	default:
		g.dropped.Add(1)
	}
}

func (g *Gatekeeper) fanout() {
	defer g.wg.Done()
	ctx := context.Background()
	for e := range g.events {
		if err := g.sink.Record(ctx, e.rec); err != nil {
			slog.Error("audit sink record failed", "decision_id", e.rec.ID, "error", err)
		}
		g.hub.BroadcastEvent(ctx, ws.EventDecision, ws.DecisionEvent{
			DecisionID: e.rec.ID,
			AgentID:    e.rec.AgentID,
			Tool:       e.rec.Tool,
			Verdict:    string(e.rec.Verdict),
			Stage:      string(e.rec.Stage),
			Reason:     e.rec.Reason,
		})
		if e.held {
			g.hub.BroadcastEvent(ctx, ws.EventHoldCreated, ws.HoldEvent{
				HoldID:  e.rec.HoldID,
				AgentID: e.rec.AgentID,
				Tool:    e.rec.Tool,
				State:   "pending",
			})
		}
	}
}
