package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrEndpoint  = "endpoint"
	attrStrategy  = "strategy"
	attrOutcome   = "outcome"
	attrDomain    = "user_domain"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// Chat backend metrics
	backendRequestsTotal   metric.Int64Counter
	backendRequestDuration metric.Float64Histogram

	// Sign-in and token sync metrics
	oauthSignInTotal metric.Int64Counter
	tokenSyncTotal   metric.Int64Counter

	// Gateway metrics
	gatewayOutcomesTotal metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.backendRequestsTotal, err = meter.Int64Counter(
		"backend_requests_total",
		metric.WithDescription("Total number of requests sent to the chat backend"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_requests_total counter: %w", err)
	}

	m.backendRequestDuration, err = meter.Float64Histogram(
		"backend_request_duration_seconds",
		metric.WithDescription("Chat backend request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_request_duration_seconds histogram: %w", err)
	}

	m.oauthSignInTotal, err = meter.Int64Counter(
		"oauth_signin_total",
		metric.WithDescription("Total number of OAuth sign-in attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_signin_total counter: %w", err)
	}

	m.tokenSyncTotal, err = meter.Int64Counter(
		"token_sync_total",
		metric.WithDescription("Total number of token pushes to the chat backend"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_sync_total counter: %w", err)
	}

	m.gatewayOutcomesTotal, err = meter.Int64Counter(
		"gateway_outcomes_total",
		metric.WithDescription("Total number of classified gateway results"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway_outcomes_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
// path should be a route pattern, not the raw URL, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (calendar, oauth2)
//   - operation: Operation type (list, create, userinfo)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBackendRequest records a call to the chat backend.
// status is the HTTP status code, or 0 when the backend could not be reached.
func (m *Metrics) RecordBackendRequest(ctx context.Context, endpoint string, status int, duration time.Duration) {
	if m == nil || m.backendRequestsTotal == nil || m.backendRequestDuration == nil {
		return // Instrumentation not initialized
	}

	statusLabel := strconv.Itoa(status)
	if status == 0 {
		statusLabel = StatusUnreachable
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEndpoint, endpoint),
		attribute.String(attrStatus, statusLabel),
	}

	m.backendRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSignIn records an OAuth sign-in attempt with result.
// Result should be one of: "success", "failure", "denied"
func (m *Metrics) RecordSignIn(ctx context.Context, result string) {
	if m == nil || m.oauthSignInTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthSignInTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordTokenSync records the result of a token push to the chat backend.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordTokenSync(ctx context.Context, result string) {
	if m == nil || m.tokenSyncTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenSyncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordGatewayOutcome records a classified gateway result.
// The identity is only attached, as its domain, when detailed labels are enabled.
func (m *Metrics) RecordGatewayOutcome(ctx context.Context, strategy, operation, outcome, identity string) {
	if m == nil || m.gatewayOutcomesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStrategy, strategy),
		attribute.String(attrOperation, operation),
		attribute.String(attrOutcome, outcome),
	}

	if m.detailedLabels && identity != "" {
		attrs = append(attrs, attribute.String(attrDomain, userDomain(identity)))
	}

	m.gatewayOutcomesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
