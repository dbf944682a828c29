package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Invocation captures one gateway operation for audit logging, whether it
// arrived through the HTTP surface or through an MCP tool call.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. Use LogAttrs for general logs and keep
// LogAuditAttrs for audit-specific log streams.
type Invocation struct {
	// Entry point ("http" or "mcp") and the tool name for MCP calls
	Channel string
	Tool    string

	// User identity resolved from the session
	UserEmail string

	// Gateway routing
	Strategy  string
	Operation string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Outcome   string
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewInvocation creates a new Invocation with timing started.
// Call Complete() when the operation finishes.
func NewInvocation(channel, strategy, operation string) *Invocation {
	return &Invocation{
		Channel:   channel,
		Strategy:  strategy,
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity information.
func (in *Invocation) WithUser(email string) *Invocation {
	in.UserEmail = email
	return in
}

// WithTool sets the MCP tool name.
func (in *Invocation) WithTool(tool string) *Invocation {
	in.Tool = tool
	return in
}

// WithSpanContext extracts trace context from the current span.
func (in *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		in.TraceID = span.SpanContext().TraceID().String()
		in.SpanID = span.SpanContext().SpanID().String()
	}
	return in
}

// Complete marks the invocation as finished with the classified outcome.
func (in *Invocation) Complete(outcome string, err error) *Invocation {
	in.Duration = time.Since(in.StartTime)
	in.Outcome = outcome
	if err != nil {
		in.Error = err.Error()
	}
	return in
}

// Success reports whether the invocation ended with a success outcome.
func (in *Invocation) Success() bool {
	return in.Outcome == StatusSuccess
}

// UserDomain returns the domain portion of the user's email for lower-cardinality logging.
func (in *Invocation) UserDomain() string {
	return userDomain(in.UserEmail)
}

// LogAttrs returns slog attributes with cardinality-controlled values (user_domain).
func (in *Invocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("channel", in.Channel),
		slog.String("strategy", in.Strategy),
		slog.String("operation", in.Operation),
		slog.String("outcome", in.Outcome),
		slog.String("user_domain", in.UserDomain()),
		slog.Duration("duration", in.Duration),
	}
	return in.appendOptional(attrs, false)
}

// LogAuditAttrs returns slog attributes including the full user email.
//
// # Security Warning
//
// This method includes PII. Audit logs must be stored with access controls.
func (in *Invocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("channel", in.Channel),
		slog.String("strategy", in.Strategy),
		slog.String("operation", in.Operation),
		slog.String("outcome", in.Outcome),
		slog.String("user", in.UserEmail),
		slog.Duration("duration", in.Duration),
	}
	return in.appendOptional(attrs, true)
}

func (in *Invocation) appendOptional(attrs []slog.Attr, withSpan bool) []slog.Attr {
	if in.Tool != "" {
		attrs = append(attrs, slog.String("tool", in.Tool))
	}
	if in.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", in.TraceID))
	}
	if withSpan && in.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", in.SpanID))
	}
	if in.Error != "" {
		attrs = append(attrs, slog.String("error", in.Error))
	}
	return attrs
}

// AuditLogger provides structured audit logging for gateway invocations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
// If logger is nil, slog.Default() is used.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogInvocation logs a completed invocation. Failed outcomes are logged at warn level.
// A nil AuditLogger is a no-op.
func (al *AuditLogger) LogInvocation(in *Invocation) {
	if al == nil || !al.enabled || in == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = in.LogAuditAttrs()
	} else {
		attrs = in.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if in.Success() {
		al.logger.Info("gateway_invocation", args...)
	} else {
		al.logger.Warn("gateway_invocation_failed", args...)
	}
}
