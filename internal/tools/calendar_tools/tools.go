package calendar_tools

import (
	"context"
	"maps"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calgate/internal/gateway"
	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/session"
	"github.com/teemow/calgate/internal/tools/common"
)

// Tool names.
const (
	ListEventsToolName  = "calendar_list_events"
	CreateEventToolName = "calendar_create_event"
)

// RegisterCalendarTools registers the calendar tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, strategy gateway.Strategy, metrics *instrumentation.Metrics) {
	listEventsTool := mcp.NewTool(ListEventsToolName,
		mcp.WithDescription("List the signed-in user's upcoming calendar events"),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandler(ListEventsToolName, metrics,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, strategy)
		}))

	createEventTool := mcp.NewTool(CreateEventToolName,
		mcp.WithDescription("Create a calendar event for the signed-in user. Provide summary, start and end, "+
			"or a natural-language message when the gateway delegates to the assistant backend."),
		mcp.WithString("summary",
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("start",
			mcp.Description("Start time (RFC3339 format, e.g., '2025-01-15T14:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Description("End time (RFC3339 format, e.g., '2025-01-15T15:00:00Z')"),
		),
		mcp.WithString("message",
			mcp.Description("Natural-language request, e.g. 'lunch with Sam tomorrow at noon' (delegated mode only)"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandler(CreateEventToolName, metrics,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, strategy)
		}))
}

func handleListEvents(ctx context.Context, _ mcp.CallToolRequest, strategy gateway.Strategy) (*mcp.CallToolResult, error) {
	p, err := strategy.Authenticate(session.FromContext(ctx))
	if err != nil {
		return common.ErrorResult(err), nil
	}

	res, err := strategy.ListEvents(ctx, p)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res.Payload)
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, strategy gateway.Strategy) (*mcp.CallToolResult, error) {
	p, err := strategy.Authenticate(session.FromContext(ctx))
	if err != nil {
		return common.ErrorResult(err), nil
	}

	payload := make(map[string]any)
	maps.Copy(payload, request.GetArguments())

	res, err := strategy.CreateEvent(ctx, p, payload)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return common.JSONResult(res.Payload)
}
