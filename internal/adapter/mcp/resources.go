package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	holddomain "github.com/wardenhq/warden/internal/domain/hold"
)

// registerResources registers read-only MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"warden://holds/pending",
			"Pending Holds",
			mcplib.WithResourceDescription("Tool calls waiting for human approval"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePendingHoldsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"warden://stats",
			"System Stats",
			mcplib.WithResourceDescription("Registry-wide agent and operation counters"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)
}

func (s *Server) handlePendingHoldsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Holds == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"hold resolver not configured"}`,
			},
		}, nil
	}
	pending := s.deps.Holds.Pending()
	if pending == nil {
		pending = []holddomain.Request{}
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleStatsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Agents == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"agent reader not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Agents.SystemStats())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
