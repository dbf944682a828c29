package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calgate/internal/gateway"
	"github.com/teemow/calgate/internal/instrumentation"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span and invocation metrics.
// It also tags the context so gateway audit records name the tool.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", metrics, handler))
func InstrumentedToolHandler(toolName string, metrics *instrumentation.Metrics, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		ctx = gateway.WithCaller(ctx, gateway.ChannelMCP, toolName)

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			instrumentation.SetSpanOutcome(span, status)
		default:
			instrumentation.SetSpanSuccess(span)
		}

		metrics.RecordToolInvocation(ctx, toolName, status, duration)

		return result, err
	}
}
