// Package mcp exposes gatekeeper inspection and hold resolution as
// Model Context Protocol tools, so supervising agents can query and
// resolve holds over MCP.
package mcp

import (
	"context"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/wardenhq/warden/internal/domain/agent"
	holddomain "github.com/wardenhq/warden/internal/domain/hold"
)

// AgentReader is the slice of the drift engine the MCP tools need.
type AgentReader interface {
	AgentStatus(agentID string) (agent.Record, bool)
	SystemStats() agent.SystemStats
	HaltAgent(agentID, reason string)
	ResumeAgent(agentID string)
}

// HoldResolver is the slice of the hold manager the MCP tools need.
type HoldResolver interface {
	Pending() []holddomain.Request
	Approve(holdID, actor, reason string) *holddomain.Request
	Reject(holdID, actor, reason string) *holddomain.Request
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps holds the dependencies the tools are served from.
type ServerDeps struct {
	Agents AgentReader
	Holds  HoldResolver
}

// Server wraps an MCP server exposing Warden tools over streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
	tools      []mcpserver.ServerTool
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Tools returns the registered tools, for inspection.
func (s *Server) Tools() []mcpserver.ServerTool {
	return s.tools
}

// Start serves MCP over streamable HTTP on the configured address. It
// returns immediately; serve errors are logged.
func (s *Server) Start() error {
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.Start(s.cfg.Addr); err != nil {
			slog.Error("mcp server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// toolResultJSON wraps a JSON payload as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
