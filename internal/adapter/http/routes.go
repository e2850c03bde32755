package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Execution
		r.Post("/execute", h.ExecuteRequest)

		// Agents
		r.Get("/agents/{id}/status", h.GetAgentStatus)
		r.Get("/agents/{id}/history", h.GetAgentHistory)
		r.Get("/agents/{id}/alerts", h.GetAgentAlerts)
		r.Post("/agents/{id}/halt", h.HaltAgent)
		r.Post("/agents/{id}/resume", h.ResumeAgent)

		// System
		r.Get("/stats", h.GetSystemStats)
		r.Post("/registry/reset", h.ResetRegistry)

		// Holds
		r.Get("/holds", h.ListHolds)
		r.Post("/holds/clear", h.ClearHolds)
		r.Get("/holds/{id}", h.GetHold)
		r.Post("/holds/{id}/approve", h.ApproveHold)
		r.Post("/holds/{id}/reject", h.RejectHold)

		// Control
		r.Get("/control", h.GetControl)
		r.Put("/control", h.PutControl)

		// Decision history
		r.Get("/decisions", h.ListDecisions)
	})
}
