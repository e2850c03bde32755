// Package drift maintains per-agent circuit breaker state and computes
// behavioral drift scores from bounded operation history.
package drift

import (
	"sync"
	"sync/atomic"

	"github.com/wardenhq/warden/internal/domain/agent"
)

// Default history caps. Per-agent memory stays bounded regardless of how
// many operations are recorded.
const (
	DefaultHistoryCap = 1000
	DefaultAlertCap   = 100
)

// agentState is the registry entry for one agent identifier. All fields
// are guarded by mu; callers for different agents never contend.
type agentState struct {
	mu         sync.Mutex
	status     agent.Status
	haltReason string
	driftScore float64
	history    *ring[agent.OperationEntry]
	alerts     *ring[agent.Alert]
}

// registry is the shared agent table. Entries are created lazily and
// removed only by Reset.
type registry struct {
	agents      sync.Map // map[string]*agentState
	historyCap  int
	alertCap    int
	totalOps    atomic.Int64
	totalAlerts atomic.Int64
}

func newRegistry(historyCap, alertCap int) *registry {
	if historyCap < 1 {
		historyCap = DefaultHistoryCap
	}
	if alertCap < 1 {
		alertCap = DefaultAlertCap
	}
	return &registry{historyCap: historyCap, alertCap: alertCap}
}

// state returns the entry for agentID, creating it if needed.
func (r *registry) state(agentID string) *agentState {
	if st, ok := r.agents.Load(agentID); ok {
		return st.(*agentState)
	}
	st, _ := r.agents.LoadOrStore(agentID, &agentState{
		status:  agent.StatusActive,
		history: newRing[agent.OperationEntry](r.historyCap),
		alerts:  newRing[agent.Alert](r.alertCap),
	})
	return st.(*agentState)
}

// lookup returns the entry for agentID without creating it.
func (r *registry) lookup(agentID string) (*agentState, bool) {
	st, ok := r.agents.Load(agentID)
	if !ok {
		return nil, false
	}
	return st.(*agentState), true
}

func (r *registry) reset() {
	r.agents.Range(func(k, _ any) bool {
		r.agents.Delete(k)
		return true
	})
	r.totalOps.Store(0)
	r.totalAlerts.Store(0)
}

func (r *registry) stats() agent.SystemStats {
	s := agent.SystemStats{
		TotalOperations: r.totalOps.Load(),
		TotalAlerts:     r.totalAlerts.Load(),
	}
	r.agents.Range(func(_, v any) bool {
		st := v.(*agentState)
		st.mu.Lock()
		halted := st.status == agent.StatusHalted
		st.mu.Unlock()
		s.AgentCount++
		if halted {
			s.HaltedCount++
		}
		return true
	})
	return s
}
