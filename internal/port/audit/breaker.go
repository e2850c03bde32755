package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/domain/gate"
)

// ErrSinkSuspended is returned while a breaker-wrapped sink is
// suspended after repeated delivery failures.
var ErrSinkSuspended = errors.New("audit sink suspended")

type breakerState int

const (
	sinkHealthy breakerState = iota
	sinkSuspended
	sinkProbing
)

// BreakerSink wraps a Sink with a circuit breaker. After maxFailures
// consecutive Record failures the sink is suspended for the retry
// interval; the next Record after the interval probes the backend, and
// a failed probe suspends it again. Decision records delivered while
// suspended are lost, which matches the audit contract: a failing sink
// must never hold up the fan-out worker.
type BreakerSink struct {
	inner Sink

	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	retryAfter  time.Duration
	suspendedAt time.Time
	now         func() time.Time
}

// NewBreakerSink wraps inner, suspending it after maxFailures
// consecutive failures for retryAfter per suspension.
func NewBreakerSink(inner Sink, maxFailures int, retryAfter time.Duration) *BreakerSink {
	return &BreakerSink{
		inner:       inner,
		maxFailures: maxFailures,
		retryAfter:  retryAfter,
		now:         time.Now,
	}
}

// Record forwards to the wrapped sink unless it is suspended.
func (b *BreakerSink) Record(ctx context.Context, rec gate.DecisionRecord) error {
	if !b.allow() {
		return ErrSinkSuspended
	}

	err := b.inner.Record(ctx, rec)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == sinkProbing || b.failures >= b.maxFailures {
			b.state = sinkSuspended
			b.suspendedAt = b.now()
		}
		return err
	}
	b.failures = 0
	b.state = sinkHealthy
	return nil
}

func (b *BreakerSink) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case sinkHealthy, sinkProbing:
		return true
	case sinkSuspended:
		if b.now().Sub(b.suspendedAt) >= b.retryAfter {
			b.state = sinkProbing
			return true
		}
		return false
	}
	return false
}
