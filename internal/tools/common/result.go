package common

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calgate/internal/outcome"
)

// JSONResult renders payload as an indented JSON text result.
func JSONResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ErrorResult turns a gateway failure into a tool error the model can read.
// Only the caller-safe message is exposed.
func ErrorResult(err error) *mcp.CallToolResult {
	oe := outcome.AsError(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s (%s, status %d)", oe.Message, oe.Kind, oe.HTTPStatus()))
}
