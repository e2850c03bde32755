package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	wdhttp "github.com/wardenhq/warden/internal/adapter/http"
	"github.com/wardenhq/warden/internal/domain/gate"
	holddomain "github.com/wardenhq/warden/internal/domain/hold"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/gatekeeper"
	"github.com/wardenhq/warden/internal/hold"
)

type testServer struct {
	router http.Handler
	engine *drift.Engine
	holds  *hold.Manager
	gate   *gatekeeper.Gatekeeper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	engine := drift.NewEngine(drift.DefaultConfig())
	holds := hold.NewManager()
	g := gatekeeper.New(engine, holds)
	t.Cleanup(g.Close)

	h := wdhttp.NewHandlers(g, engine, holds)
	r := chi.NewRouter()
	wdhttp.MountRoutes(r, h)

	return &testServer{router: r, engine: engine, holds: holds, gate: g}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestExecuteAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1",
		Frame:   "research",
		Tool:    "search_web",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	res := decode[gate.ExecutionResult](t, rec)
	if res.Verdict != gate.VerdictAllowed {
		t.Errorf("verdict = %q, want %q", res.Verdict, gate.VerdictAllowed)
	}
}

func TestExecuteMissingAgentID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{Tool: "search_web"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExecuteBlockedAfterHalt(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/agents/agent-1/halt", map[string]string{"reason": "maintenance"})
	if rec.Code != http.StatusOK {
		t.Fatalf("halt status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1",
		Tool:    "search_web",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d, want 200", rec.Code)
	}

	res := decode[gate.ExecutionResult](t, rec)
	if res.Verdict != gate.VerdictBlocked {
		t.Errorf("verdict = %q, want %q", res.Verdict, gate.VerdictBlocked)
	}
	if !strings.Contains(res.Reason, "maintenance") {
		t.Errorf("reason %q does not carry the halt reason", res.Reason)
	}
}

func TestAgentStatusNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/agents/ghost/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	// A status query must not create registry state.
	stats := ts.engine.SystemStats()
	if stats.AgentCount != 0 {
		t.Errorf("agent_count = %d after status query, want 0", stats.AgentCount)
	}
}

func TestAgentHistoryAndAlerts(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1", Frame: "research", Tool: "search_web",
	})

	rec := ts.do(t, http.MethodGet, "/api/v1/agents/agent-1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/agents/agent-1/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts status = %d, want 200", rec.Code)
	}
}

func TestResumeUnknownAgent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/agents/ghost/resume", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHoldLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	ctl := gate.DefaultControl()
	ctl.MCPValidationTools = []string{"delete_*"}
	rec := ts.do(t, http.MethodPut, "/api/v1/control", ctl)
	if rec.Code != http.StatusOK {
		t.Fatalf("put control status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1",
		Tool:    "delete_repo",
	})
	res := decode[gate.ExecutionResult](t, rec)
	if res.Verdict != gate.VerdictHeld {
		t.Fatalf("verdict = %q, want %q", res.Verdict, gate.VerdictHeld)
	}
	if res.Hold == nil {
		t.Fatal("held result carries no hold")
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/holds", nil)
	pending := decode[[]holddomain.Request](t, rec)
	if len(pending) != 1 {
		t.Fatalf("pending holds = %d, want 1", len(pending))
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/holds/"+res.Hold.ID+"/approve",
		map[string]string{"actor": "operator@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	resolved := decode[holddomain.Request](t, rec)
	if resolved.State != holddomain.StateApproved {
		t.Errorf("state = %q, want %q", resolved.State, holddomain.StateApproved)
	}

	// Second resolution attempt must conflict, not flip the state.
	rec = ts.do(t, http.MethodPost, "/api/v1/holds/"+res.Hold.ID+"/reject",
		map[string]string{"actor": "other@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second resolve status = %d, want 409", rec.Code)
	}
}

func TestResolveHoldRequiresActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/holds/some-id/approve", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResolveUnknownHold(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/holds/ghost/approve",
		map[string]string{"actor": "operator@example.com"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPutControlInvalid(t *testing.T) {
	ts := newTestServer(t)

	ctl := gate.DefaultControl()
	ctl.DriftPredictionThreshold = 1.5
	rec := ts.do(t, http.MethodPut, "/api/v1/control", ctl)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// The active config must be unchanged.
	rec = ts.do(t, http.MethodGet, "/api/v1/control", nil)
	got := decode[gate.ExecutionControl](t, rec)
	if got.DriftPredictionThreshold != gate.DefaultControl().DriftPredictionThreshold {
		t.Errorf("threshold = %v, want default", got.DriftPredictionThreshold)
	}
}

func TestSystemStats(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1", Tool: "search_web",
	})

	rec := ts.do(t, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats struct {
		Agents struct {
			AgentCount      int   `json:"agent_count"`
			TotalOperations int64 `json:"total_operations"`
		} `json:"agents"`
		PendingHolds int `json:"pending_holds"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Agents.AgentCount != 1 {
		t.Errorf("agent_count = %d, want 1", stats.Agents.AgentCount)
	}
	if stats.Agents.TotalOperations != 1 {
		t.Errorf("total_operations = %d, want 1", stats.Agents.TotalOperations)
	}
}

func TestRegistryReset(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/v1/execute", gate.ExecutionRequest{
		AgentID: "agent-1", Tool: "search_web",
	})

	rec := ts.do(t, http.MethodPost, "/api/v1/registry/reset", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := ts.engine.SystemStats().AgentCount; got != 0 {
		t.Errorf("agent_count = %d after reset, want 0", got)
	}
}

func TestListDecisionsUnconfigured(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/decisions", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ts := newTestServer(t)
	protected := wdhttp.BearerAuth(string(hash))(ts.router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good token status = %d, want 200", rec.Code)
	}

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}
