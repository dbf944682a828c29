package common

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/outcome"
)

func TestInstrumentedToolHandler(t *testing.T) {
	metrics, err := instrumentation.NewMetrics(noop.NewMeterProvider().Meter("test"), false)
	require.NoError(t, err)

	tests := []struct {
		name    string
		metrics *instrumentation.Metrics
		result  *mcp.CallToolResult
		err     error
	}{
		{"success", metrics, mcp.NewToolResultText("ok"), nil},
		{"tool error", metrics, mcp.NewToolResultError("nope"), nil},
		{"handler error", metrics, nil, errors.New("boom")},
		{"nil metrics", nil, mcp.NewToolResultText("ok"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				called = true
				return tt.result, tt.err
			}

			wrapped := InstrumentedToolHandler("test_tool", tt.metrics, handler)
			res, err := wrapped(context.Background(), mcp.CallToolRequest{})

			assert.True(t, called)
			assert.Equal(t, tt.result, res)
			assert.Equal(t, tt.err, err)
		})
	}
}

func TestJSONResult(t *testing.T) {
	res, err := JSONResult(map[string]any{"items": []string{"a"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"items":["a"]}`, tc.Text)

	_, err = JSONResult(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestErrorResult(t *testing.T) {
	res := ErrorResult(outcome.NewValidation("missing required fields: start"))
	assert.True(t, res.IsError)

	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "missing required fields: start (validation_error, status 400)", tc.Text)
}
