// Package instrumentation provides OpenTelemetry instrumentation for calgate.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, sign-ins, backend calls and Google API calls
//   - Distributed tracing for gateway operations and outbound calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//   - Audit logging of gateway invocations
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, route, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Chat Backend Metrics:
//   - backend_requests_total: Counter of chat backend calls by endpoint and status
//   - backend_request_duration_seconds: Histogram of chat backend call durations
//
// Session Metrics:
//   - oauth_signin_total: Counter of sign-in attempts by result
//   - token_sync_total: Counter of token pushes to the chat backend by result
//
// Gateway Metrics:
//   - gateway_outcomes_total: Counter of classified results by strategy, operation and outcome
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for:
//   - Gateway operations (gateway.<operation>)
//   - MCP tool invocations (tool.<name>)
//   - Google API calls (google.<service>.<operation>)
//   - Chat backend calls (backend/<endpoint>)
//
// # Configuration
//
// Config is filled by the serve command from the process configuration
// (INSTRUMENTATION_ENABLED, METRICS_EXPORTER, TRACING_EXPORTER,
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG and the audit
// settings). With the prometheus exporter each Provider owns its registry,
// exposed through MetricsHandler.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:     "calgate",
//		Enabled:         true,
//		MetricsExporter: instrumentation.ExporterPrometheus,
//		TracingExporter: instrumentation.ExporterNone,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordBackendRequest(ctx, "/chat", 200, time.Since(start))
//	recorder.RecordGatewayOutcome(ctx, "delegated", "create", "success", "")
package instrumentation
