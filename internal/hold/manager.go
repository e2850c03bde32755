// Package hold owns the lifecycle of pending human-approval requests.
// Resolution is first-wins: of two racing approve/reject calls for the
// same hold, exactly one succeeds and the loser observes the terminal
// state.
package hold

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/wardenhq/warden/internal/domain/hold"
)

// entry wraps a request with its own lock so that resolution of one hold
// never contends with resolution of another.
type entry struct {
	mu  sync.Mutex
	req domain.Request
}

// Manager is the hold queue, keyed by hold identifier.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewManager creates an empty hold manager.
func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Create registers a new pending hold with deadline = now + ttl and
// returns a copy of it.
func (m *Manager) Create(agentID, tool string, args map[string]any, ttl time.Duration) domain.Request {
	now := m.now()
	req := domain.Request{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Tool:      tool,
		Arguments: args,
		CreatedAt: now,
		Deadline:  now.Add(ttl),
		State:     domain.StatePending,
	}

	m.mu.Lock()
	m.entries[req.ID] = &entry{req: req}
	m.mu.Unlock()

	slog.Info("hold created",
		"hold_id", req.ID,
		"agent_id", agentID,
		"tool", tool,
		"deadline", req.Deadline,
	)
	return req
}

// Approve transitions a pending hold to approved. It returns nil when the
// hold is unknown or already terminal; a losing racer observing nil is
// the defined contract, not an error.
func (m *Manager) Approve(holdID, actor, reason string) *domain.Request {
	return m.resolve(holdID, actor, reason, domain.StateApproved)
}

// Reject transitions a pending hold to rejected, symmetric to Approve.
func (m *Manager) Reject(holdID, actor, reason string) *domain.Request {
	return m.resolve(holdID, actor, reason, domain.StateRejected)
}

func (m *Manager) resolve(holdID, actor, reason string, to domain.State) *domain.Request {
	m.mu.RLock()
	e, ok := m.entries[holdID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m.expireLocked(e)
	if e.req.State != domain.StatePending {
		return nil
	}

	e.req.State = to
	e.req.Actor = actor
	e.req.Reason = reason
	e.req.ResolvedAt = m.now()

	resolved := e.req
	slog.Info("hold resolved",
		"hold_id", holdID,
		"state", to,
		"actor", actor,
	)
	return &resolved
}

// Get returns a copy of the hold, expiring it first if its deadline has
// passed. Unknown identifiers return nil.
func (m *Manager) Get(holdID string) *domain.Request {
	m.mu.RLock()
	e, ok := m.entries[holdID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	m.expireLocked(e)
	req := e.req
	return &req
}

// Pending returns all pending holds ordered by creation time. Holds past
// their deadline are transitioned to expired on the way and never
// reported as pending.
func (m *Manager) Pending() []domain.Request {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]domain.Request, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		m.expireLocked(e)
		if e.req.State == domain.StatePending {
			out = append(out, e.req)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sweep eagerly expires overdue pending holds and reports how many it
// transitioned. Intended to run periodically; lazy expiry on read keeps
// correctness even if it never runs.
func (m *Manager) Sweep() int {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	expired := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.req.State == domain.StatePending && m.expireLocked(e) {
			expired++
		}
		e.mu.Unlock()
	}
	if expired > 0 {
		slog.Info("hold sweep expired holds", "count", expired)
	}
	return expired
}

// ClearAll removes every hold. Resolved and pending alike; memory returns
// to baseline.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.mu.Unlock()
}

// expireLocked must be called with e.mu held. Returns true if the entry
// transitioned to expired.
func (m *Manager) expireLocked(e *entry) bool {
	if e.req.State != domain.StatePending {
		return false
	}
	if e.req.Deadline.After(m.now()) {
		return false
	}
	e.req.State = domain.StateExpired
	e.req.ResolvedAt = m.now()
	return true
}
