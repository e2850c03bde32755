package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	holddomain "github.com/wardenhq/warden/internal/domain/hold"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.tools = []mcpserver.ServerTool{
		s.getAgentStatusTool(),
		s.getSystemStatsTool(),
		s.haltAgentTool(),
		s.resumeAgentTool(),
		s.listPendingHoldsTool(),
		s.approveHoldTool(),
		s.rejectHoldTool(),
	}
	s.mcpServer.AddTools(s.tools...)
}

func (s *Server) getAgentStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent_status",
		mcplib.WithDescription("Get the circuit-breaker state and drift score of an agent"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetAgentStatus}
}

func (s *Server) getSystemStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_system_stats",
		mcplib.WithDescription("Get registry-wide counters: agents, halts, operations, alerts"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetSystemStats}
}

func (s *Server) haltAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("halt_agent",
		mcplib.WithDescription("Trip the circuit breaker for an agent so all its tool calls are blocked"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to halt"),
		),
		mcplib.WithString("reason",
			mcplib.Description("Why the agent is being halted"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleHaltAgent}
}

func (s *Server) resumeAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("resume_agent",
		mcplib.WithDescription("Clear the circuit breaker for a halted agent"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to resume"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleResumeAgent}
}

func (s *Server) listPendingHoldsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_pending_holds",
		mcplib.WithDescription("List all tool calls waiting for human approval"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListPendingHolds}
}

func (s *Server) approveHoldTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("approve_hold",
		mcplib.WithDescription("Approve a held tool call"),
		mcplib.WithString("hold_id",
			mcplib.Required(),
			mcplib.Description("The hold ID to approve"),
		),
		mcplib.WithString("actor",
			mcplib.Required(),
			mcplib.Description("Who is approving"),
		),
		mcplib.WithString("reason",
			mcplib.Description("Optional resolution note"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleApproveHold}
}

func (s *Server) rejectHoldTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("reject_hold",
		mcplib.WithDescription("Reject a held tool call"),
		mcplib.WithString("hold_id",
			mcplib.Required(),
			mcplib.Description("The hold ID to reject"),
		),
		mcplib.WithString("actor",
			mcplib.Required(),
			mcplib.Description("Who is rejecting"),
		),
		mcplib.WithString("reason",
			mcplib.Description("Optional resolution note"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRejectHold}
}

func (s *Server) handleGetAgentStatus(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	rec, ok := s.deps.Agents.AgentStatus(agentID)
	if !ok {
		return mcplib.NewToolResultError("agent not found: " + agentID), nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agent status", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetSystemStats(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	data, err := json.Marshal(s.deps.Agents.SystemStats())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal system stats", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleHaltAgent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "halted via mcp"
	}
	s.deps.Agents.HaltAgent(agentID, reason)
	return toolResultJSON(`{"halted":true,"agent_id":"` + agentID + `"}`), nil
}

func (s *Server) handleResumeAgent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	s.deps.Agents.ResumeAgent(agentID)
	return toolResultJSON(`{"resumed":true,"agent_id":"` + agentID + `"}`), nil
}

func (s *Server) handleListPendingHolds(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Holds == nil {
		return mcplib.NewToolResultError("hold resolver not configured"), nil
	}
	pending := s.deps.Holds.Pending()
	if pending == nil {
		pending = []holddomain.Request{}
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal holds", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleApproveHold(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	return s.handleResolveHold(req, holddomain.StateApproved)
}

func (s *Server) handleRejectHold(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	return s.handleResolveHold(req, holddomain.StateRejected)
}

func (s *Server) handleResolveHold(req mcplib.CallToolRequest, to holddomain.State) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Holds == nil {
		return mcplib.NewToolResultError("hold resolver not configured"), nil
	}
	args := req.GetArguments()
	holdID, ok := args["hold_id"].(string)
	if !ok || holdID == "" {
		return mcplib.NewToolResultError("hold_id is required"), nil
	}
	actor, ok := args["actor"].(string)
	if !ok || actor == "" {
		return mcplib.NewToolResultError("actor is required"), nil
	}
	reason, _ := args["reason"].(string)

	var resolved *holddomain.Request
	if to == holddomain.StateApproved {
		resolved = s.deps.Holds.Approve(holdID, actor, reason)
	} else {
		resolved = s.deps.Holds.Reject(holdID, actor, reason)
	}
	if resolved == nil {
		return mcplib.NewToolResultError("hold not found or already resolved: " + holdID), nil
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal hold", err), nil
	}
	return toolResultJSON(string(data)), nil
}
