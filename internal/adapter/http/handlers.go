package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	otelad "github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain/gate"
	holddomain "github.com/wardenhq/warden/internal/domain/hold"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/gatekeeper"
	"github.com/wardenhq/warden/internal/hold"
	"github.com/wardenhq/warden/internal/port/broadcast"
)

const defaultDecisionLimit = 100

// DecisionLister serves decision history queries. Nil when no audit
// database is configured.
type DecisionLister interface {
	ListRecent(ctx context.Context, agentID string, limit int) ([]gate.DecisionRecord, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Gate      *gatekeeper.Gatekeeper
	Engine    *drift.Engine
	Holds     *hold.Manager
	Decisions DecisionLister
	Hub       broadcast.Broadcaster
	Metrics   *otelad.Metrics
	Version   string
}

// NewHandlers constructs Handlers, substituting no-ops for optional
// dependencies left nil.
func NewHandlers(g *gatekeeper.Gatekeeper, e *drift.Engine, h *hold.Manager) *Handlers {
	return &Handlers{
		Gate:    g,
		Engine:  e,
		Holds:   h,
		Hub:     broadcast.Nop{},
		Version: "dev",
	}
}

// --- Execution ---

// ExecuteRequest handles POST /api/v1/execute.
func (h *Handlers) ExecuteRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[gate.ExecutionRequest](w, r)
	if !ok {
		return
	}

	res, err := h.Gate.Execute(r.Context(), req)
	if err != nil {
		if errors.Is(err, gate.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Agents ---

// GetAgentStatus handles GET /api/v1/agents/{id}/status.
func (h *Handlers) GetAgentStatus(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	rec, ok := h.Engine.AgentStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetAgentHistory handles GET /api/v1/agents/{id}/history.
func (h *Handlers) GetAgentHistory(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.Engine.AgentStatus(id); !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.DriftHistory(id))
}

// GetAgentAlerts handles GET /api/v1/agents/{id}/alerts.
func (h *Handlers) GetAgentAlerts(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.Engine.AgentStatus(id); !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.AgentAlerts(id))
}

type haltRequest struct {
	Reason string `json:"reason"`
}

// HaltAgent handles POST /api/v1/agents/{id}/halt.
func (h *Handlers) HaltAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[haltRequest](w, r)
	if !ok {
		return
	}
	if req.Reason == "" {
		req.Reason = "manual halt"
	}

	h.Engine.HaltAgent(id, req.Reason)
	h.Metrics.ObserveAgentHalted(r.Context())
	h.Hub.BroadcastEvent(r.Context(), ws.EventAgentHalted, ws.AgentEvent{AgentID: id, Reason: req.Reason})

	rec, _ := h.Engine.AgentStatus(id)
	writeJSON(w, http.StatusOK, rec)
}

// ResumeAgent handles POST /api/v1/agents/{id}/resume.
func (h *Handlers) ResumeAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, ok := h.Engine.AgentStatus(id); !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	h.Engine.ResumeAgent(id)
	h.Hub.BroadcastEvent(r.Context(), ws.EventAgentResumed, ws.AgentEvent{AgentID: id})

	rec, _ := h.Engine.AgentStatus(id)
	writeJSON(w, http.StatusOK, rec)
}

// --- System ---

type statsResponse struct {
	Agents       any   `json:"agents"`
	PendingHolds int   `json:"pending_holds"`
	DroppedEmits int64 `json:"dropped_emissions"`
}

// GetSystemStats handles GET /api/v1/stats.
func (h *Handlers) GetSystemStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Agents:       h.Engine.SystemStats(),
		PendingHolds: len(h.Holds.Pending()),
		DroppedEmits: h.Gate.DroppedEmissions(),
	})
}

// ResetRegistry handles POST /api/v1/registry/reset.
func (h *Handlers) ResetRegistry(w http.ResponseWriter, _ *http.Request) {
	h.Engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- Holds ---

// ListHolds handles GET /api/v1/holds.
func (h *Handlers) ListHolds(w http.ResponseWriter, _ *http.Request) {
	pending := h.Holds.Pending()
	if pending == nil {
		pending = []holddomain.Request{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// GetHold handles GET /api/v1/holds/{id}.
func (h *Handlers) GetHold(w http.ResponseWriter, r *http.Request) {
	req := h.Holds.Get(urlParam(r, "id"))
	if req == nil {
		writeError(w, http.StatusNotFound, "hold not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type resolveRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// ApproveHold handles POST /api/v1/holds/{id}/approve.
func (h *Handlers) ApproveHold(w http.ResponseWriter, r *http.Request) {
	h.resolveHold(w, r, holddomain.StateApproved)
}

// RejectHold handles POST /api/v1/holds/{id}/reject.
func (h *Handlers) RejectHold(w http.ResponseWriter, r *http.Request) {
	h.resolveHold(w, r, holddomain.StateRejected)
}

func (h *Handlers) resolveHold(w http.ResponseWriter, r *http.Request, to holddomain.State) {
	id := urlParam(r, "id")
	req, ok := readJSON[resolveRequest](w, r)
	if !ok {
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	var resolved *holddomain.Request
	if to == holddomain.StateApproved {
		resolved = h.Holds.Approve(id, req.Actor, req.Reason)
	} else {
		resolved = h.Holds.Reject(id, req.Actor, req.Reason)
	}
	if resolved == nil {
		// Unknown, already resolved, or expired. Distinguish for the client.
		if existing := h.Holds.Get(id); existing != nil {
			writeError(w, http.StatusConflict, "hold already "+string(existing.State))
			return
		}
		writeError(w, http.StatusNotFound, "hold not found")
		return
	}

	h.Metrics.ObserveHoldResolved(r.Context(), string(resolved.State))
	h.Hub.BroadcastEvent(r.Context(), ws.EventHoldResolved, ws.HoldEvent{
		HoldID:  resolved.ID,
		AgentID: resolved.AgentID,
		Tool:    resolved.Tool,
		State:   string(resolved.State),
		Actor:   resolved.Actor,
	})
	writeJSON(w, http.StatusOK, resolved)
}

// ClearHolds handles POST /api/v1/holds/clear.
func (h *Handlers) ClearHolds(w http.ResponseWriter, _ *http.Request) {
	h.Holds.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// --- Control ---

// GetControl handles GET /api/v1/control.
func (h *Handlers) GetControl(w http.ResponseWriter, _ *http.Request) {
	ctl := h.Gate.Control()
	writeJSON(w, http.StatusOK, ctl)
}

// PutControl handles PUT /api/v1/control.
func (h *Handlers) PutControl(w http.ResponseWriter, r *http.Request) {
	ctl, ok := readJSON[gate.ExecutionControl](w, r)
	if !ok {
		return
	}
	if err := h.Gate.SetControl(ctl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Gate.Control())
}

// --- Decisions ---

// ListDecisions handles GET /api/v1/decisions.
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if h.Decisions == nil {
		writeError(w, http.StatusServiceUnavailable, "decision history not configured")
		return
	}

	limit := defaultDecisionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}

	recs, err := h.Decisions.ListRecent(r.Context(), r.URL.Query().Get("agent_id"), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if recs == nil {
		recs = []gate.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
