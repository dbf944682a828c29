package instrumentation

// Config selects the telemetry exporters and resource attributes. The serve
// command fills it from the process configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// InstanceID defaults to the hostname when empty.
	InstanceID   string
	K8sNamespace string
	K8sPodName   string

	// Enabled false yields a provider whose recorders are no-ops.
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme. OTLPInsecure disables TLS
	// and is meant for local collectors only.
	OTLPEndpoint string
	OTLPInsecure bool

	// SampleRate is the parent-based trace sampling ratio in [0, 1].
	SampleRate float64

	// DetailedLabels adds the user's email domain to gateway outcome metrics.
	DetailedLabels bool

	Audit AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging of gateway invocations is active.
	Enabled bool

	// IncludePII adds the full email address to audit records. Without it
	// only the email domain is logged.
	IncludePII bool
}
