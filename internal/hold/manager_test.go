package hold

import (
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/wardenhq/warden/internal/domain/hold"
)

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager()

	req := m.Create("agent-1", "delete_branch", map[string]any{"branch": "main"}, time.Minute)
	if req.State != domain.StatePending {
		t.Fatalf("state = %q, want pending", req.State)
	}
	if req.ID == "" {
		t.Fatal("hold ID must be set")
	}
	if !req.Deadline.Equal(req.CreatedAt.Add(time.Minute)) {
		t.Errorf("deadline = %v, want created_at + 1m", req.Deadline)
	}

	got := m.Get(req.ID)
	if got == nil || got.ID != req.ID {
		t.Fatal("Get should return the created hold")
	}
}

func TestApproveTransitions(t *testing.T) {
	t.Parallel()
	m := NewManager()
	req := m.Create("agent-1", "tool", nil, time.Minute)

	resolved := m.Approve(req.ID, "alice", "looks safe")
	if resolved == nil {
		t.Fatal("approve of a pending hold should succeed")
	}
	if resolved.State != domain.StateApproved {
		t.Errorf("state = %q, want approved", resolved.State)
	}
	if resolved.Actor != "alice" || resolved.Reason != "looks safe" {
		t.Errorf("actor/reason not recorded: %+v", resolved)
	}
	if resolved.ResolvedAt.IsZero() {
		t.Error("resolved_at must be set")
	}
}

func TestResolveUnknownReturnsNil(t *testing.T) {
	t.Parallel()
	m := NewManager()
	if m.Approve("no-such-hold", "a", "r") != nil {
		t.Error("unknown hold should resolve to nil")
	}
	if m.Reject("no-such-hold", "a", "r") != nil {
		t.Error("unknown hold should resolve to nil")
	}
	if m.Get("no-such-hold") != nil {
		t.Error("unknown hold should read as nil")
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	t.Parallel()
	m := NewManager()
	req := m.Create("agent-1", "tool", nil, time.Minute)

	if m.Reject(req.ID, "bob", "no") == nil {
		t.Fatal("first rejection should win")
	}
	if m.Approve(req.ID, "alice", "yes") != nil {
		t.Fatal("approve after reject must be a no-op returning nil")
	}
	if m.Reject(req.ID, "carol", "again") != nil {
		t.Fatal("second reject must be a no-op returning nil")
	}

	got := m.Get(req.ID)
	if got.State != domain.StateRejected || got.Actor != "bob" {
		t.Fatalf("terminal state overwritten: %+v", got)
	}
}

func TestConcurrentResolutionExactlyOnce(t *testing.T) {
	t.Parallel()
	m := NewManager()

	for range 100 {
		req := m.Create("agent-1", "tool", nil, time.Minute)

		results := make(chan *domain.Request, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			results <- m.Approve(req.ID, "approver", "")
		}()
		go func() {
			defer wg.Done()
			results <- m.Reject(req.ID, "rejecter", "")
		}()
		wg.Wait()
		close(results)

		var winners []*domain.Request
		for r := range results {
			if r != nil {
				winners = append(winners, r)
			}
		}
		if len(winners) != 1 {
			t.Fatalf("expected exactly one winner, got %d", len(winners))
		}

		final := m.Get(req.ID)
		if final.State != winners[0].State {
			t.Fatalf("final state %q does not match winner %q", final.State, winners[0].State)
		}
	}
}

func TestExpiredNeverReportedPending(t *testing.T) {
	t.Parallel()
	m := NewManager()

	// Past deadline immediately.
	req := m.Create("agent-1", "tool", nil, 0)

	got := m.Get(req.ID)
	if got.State != domain.StateExpired {
		t.Fatalf("state = %q, want expired for a zero-ttl hold", got.State)
	}
	if len(m.Pending()) != 0 {
		t.Fatal("expired hold must not appear in pending")
	}
	if m.Approve(req.ID, "late", "") != nil {
		t.Fatal("approve after expiry must return nil")
	}
}

func TestExpiryViaInjectedClock(t *testing.T) {
	t.Parallel()
	m := NewManager()
	now := time.Now()
	m.now = func() time.Time { return now }

	req := m.Create("agent-1", "tool", nil, time.Second)
	if len(m.Pending()) != 1 {
		t.Fatal("hold should be pending before its deadline")
	}

	now = now.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("sweep expired %d holds, want 1", n)
	}
	if got := m.Get(req.ID); got.State != domain.StateExpired {
		t.Fatalf("state = %q, want expired after sweep", got.State)
	}
}

func TestPendingOrderedByCreation(t *testing.T) {
	t.Parallel()
	m := NewManager()
	now := time.Now()
	m.now = func() time.Time { return now }

	for i := range 5 {
		m.Create(fmt.Sprintf("agent-%d", i), "tool", nil, time.Hour)
		now = now.Add(time.Millisecond)
	}

	pending := m.Pending()
	if len(pending) != 5 {
		t.Fatalf("pending = %d, want 5", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].CreatedAt.Before(pending[i-1].CreatedAt) {
			t.Fatal("pending holds not ordered by creation time")
		}
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()
	m := NewManager()
	for range 10 {
		m.Create("agent", "tool", nil, time.Hour)
	}
	m.ClearAll()
	if len(m.Pending()) != 0 {
		t.Fatal("pending should be empty after clear")
	}
}

func TestBulkApproveScenario(t *testing.T) {
	t.Parallel()
	m := NewManager()

	ids := make([]string, 0, 500)
	for i := range 500 {
		req := m.Create(fmt.Sprintf("hold-agent-%d", i), "hold_operation", nil, time.Hour)
		ids = append(ids, req.ID)
	}

	if n := len(m.Pending()); n != 500 {
		t.Fatalf("pending = %d, want 500", n)
	}

	for _, id := range ids {
		resolved := m.Approve(id, "operator", "bulk approval")
		if resolved == nil {
			t.Fatalf("approve failed for %s", id)
		}
		if resolved.State != domain.StateApproved {
			t.Fatalf("state = %q, want approved", resolved.State)
		}
	}

	if n := len(m.Pending()); n != 0 {
		t.Fatalf("pending = %d after approving all, want 0", n)
	}
}
