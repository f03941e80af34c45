package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"hangar/internal/batch"
	"hangar/internal/hangarerr"
	"hangar/pkg/logging"
)

func (s *Server) registerTools() {
	s.mcpSrv.AddTool(
		mcp.NewTool("list",
			mcp.WithDescription("List every configured provider, optionally filtered by state"),
			mcp.WithString("state", mcp.Description("COLD, INITIALIZING, READY, DEGRADED, or DEAD")),
		),
		s.handleList,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("start",
			mcp.WithDescription("Ensure a provider is READY, launching it if necessary"),
			mcp.WithString("provider", mcp.Required(), mcp.Description("Provider id")),
		),
		s.handleStart,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("stop",
			mcp.WithDescription("Shut a provider down to COLD"),
			mcp.WithString("provider", mcp.Required(), mcp.Description("Provider id")),
			mcp.WithString("reason", mcp.Description("Optional shutdown reason recorded in logs/events")),
		),
		s.handleStop,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("call",
			mcp.WithDescription("Execute a batch of tool calls against providers/groups with bounded concurrency"),
			mcp.WithArray("calls", mcp.Required(), mcp.Description("Array of {provider|group, tool, arguments, timeout}")),
			mcp.WithNumber("max_concurrency", mcp.Description("1-20, default 10")),
			mcp.WithNumber("timeout", mcp.Description("Batch-wide deadline in seconds, 1-300, default 30")),
			mcp.WithBoolean("fail_fast", mcp.Description("Cancel not-yet-started calls after the first failure")),
			mcp.WithNumber("max_retries", mcp.Description("Retry budget per call for transient errors, default 1")),
		),
		s.handleCall,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("tools",
			mcp.WithDescription("Return a provider's tool schemas"),
			mcp.WithString("provider", mcp.Required(), mcp.Description("Provider id")),
		),
		s.handleTools,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("details",
			mcp.WithDescription("Return lifecycle details for one provider, or every provider if omitted"),
			mcp.WithString("provider", mcp.Description("Provider id; all providers if omitted")),
		),
		s.handleDetails,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("health",
			mcp.WithDescription("Return health counters for one provider, or every provider if omitted"),
			mcp.WithString("provider", mcp.Description("Provider id; all providers if omitted")),
		),
		s.handleHealth,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("status",
			mcp.WithDescription("Return routing state for every configured group"),
		),
		s.handleStatus,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("warm",
			mcp.WithDescription("Ensure a set of providers are READY in parallel"),
			mcp.WithString("providers", mcp.Required(), mcp.Description("Comma-separated provider ids")),
		),
		s.handleWarm,
	)
	s.mcpSrv.AddTool(
		mcp.NewTool("reload_config",
			mcp.WithDescription("Reload the configuration file and apply the diff"),
			mcp.WithBoolean("graceful", mcp.Description("Reserved for future use; reload is always diff-applied gracefully")),
		),
		s.handleReloadConfig,
	)
}

func requestArgs(req mcp.CallToolRequest) map[string]interface{} {
	if m, ok := req.Params.Arguments.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	state := argStringDefault(args, "state", "")
	return jsonResult(s.reg.List(state)), nil
}

func (s *Server) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, verr := argString(args, "provider")
	if verr != nil {
		return errorResult(verr), nil
	}
	details, err := s.reg.Start(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"provider": details.ProviderID,
		"state":    details.State,
		"tools":    details.ToolNames,
	}), nil
}

func (s *Server) handleStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, verr := argString(args, "provider")
	if verr != nil {
		return errorResult(verr), nil
	}
	reason := argStringDefault(args, "reason", "")
	if err := s.reg.Stop(id, reason); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{"stopped": true, "reason": reason}), nil
}

func (s *Server) handleTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, verr := argString(args, "provider")
	if verr != nil {
		return errorResult(verr), nil
	}
	tools, err := s.reg.Tools(id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tools), nil
}

func (s *Server) handleDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id := argStringDefault(args, "provider", "")
	details, err := s.reg.Details(id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(details), nil
}

func (s *Server) handleHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id := argStringDefault(args, "provider", "")
	health, err := s.reg.Health(id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(health), nil
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.reg.Status()), nil
}

func (s *Server) handleWarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	csv, verr := argString(args, "providers")
	if verr != nil {
		return errorResult(verr), nil
	}
	var ids []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return jsonResult(s.reg.Warm(ctx, ids)), nil
}

func (s *Server) handleReloadConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reload == nil {
		return errorResult(hangarerr.New(hangarerr.KindConfiguration, "reload_config", "hot reload is disabled in this configuration")), nil
	}
	s.reload.Reload()
	logging.Audit(logging.AuditEvent{Action: "config_reload", Outcome: "success", Details: "triggered via reload_config tool"})
	return jsonResult(map[string]interface{}{"reload_triggered": true}), nil
}

func (s *Server) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)

	rawCalls, ok := args["calls"].([]interface{})
	if !ok || len(rawCalls) == 0 {
		return errorResult(hangarerr.New(hangarerr.KindValidation, "call", "%q must be a non-empty array", "calls")), nil
	}

	calls := make([]batch.Call, 0, len(rawCalls))
	for i, raw := range rawCalls {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return errorResult(hangarerr.New(hangarerr.KindValidation, "call", "calls[%d] must be an object", i)), nil
		}
		c := batch.Call{
			CallID:     fmt.Sprintf("c%d", i),
			ProviderID: argStringDefault(m, "provider", ""),
			GroupID:    argStringDefault(m, "group", ""),
			Tool:       argStringDefault(m, "tool", ""),
		}
		if argMap, ok := m["arguments"].(map[string]interface{}); ok {
			c.Arguments = argMap
		}
		if secs, ok := m["timeout"].(float64); ok && secs > 0 {
			c.Timeout = time.Duration(secs * float64(time.Second))
		}
		calls = append(calls, c)
	}

	batchReq := batch.Request{
		Calls:          calls,
		MaxConcurrency: int(argFloat(args, "max_concurrency", 0)),
		Timeout:        time.Duration(argFloat(args, "timeout", 0)) * time.Second,
		FailFast:       argBool(args, "fail_fast", false),
		MaxRetries:     int(argFloat(args, "max_retries", 0)),
	}

	resp, validationErrs := s.reg.Call(ctx, batchReq)
	if len(validationErrs) > 0 {
		return jsonResult(map[string]interface{}{
			"success":           false,
			"validation_errors": validationErrs,
		}), nil
	}
	return jsonResult(resp), nil
}
