package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_SCOPES", "SESSION_SECRET", "NEXTAUTH_SECRET",
	"BACKEND_URL", "BACKEND_TIMEOUT", "BASE_URL", "APP_URL", "STRATEGY", "CALENDAR_TIMEZONE",
	"HTTP_ADDR", "METRICS_ADDR", "METRICS_ENABLED", "LOG_FORMAT", "LOG_LEVEL",
	"COOKIE_SECURE", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "ENABLE_MCP",
	"INSTRUMENTATION_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_INSTANCE_ID", "METRICS_EXPORTER",
	"TRACING_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACES_SAMPLER_ARG",
	"METRICS_DETAILED_LABELS", "K8S_NAMESPACE", "K8S_POD_NAME", "AUDIT_LOGGING_ENABLED", "AUDIT_LOGGING_INCLUDE_PII",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		// Setenv registers the restore; unset so envconfig applies defaults.
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func validConfig() *Config {
	return &Config{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		BackendURL:         "http://localhost:8000",
		BaseURL:            "http://localhost:8080",
		AppURL:             "/",
		Strategy:           "delegated",
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "delegated", cfg.Strategy)
	assert.Equal(t, "Asia/Kolkata", cfg.CalendarTimeZone)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.EnableMCP)
	assert.InDelta(t, 10.0, cfg.RateLimitRPS, 0)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, "http://localhost:8080/auth/callback", cfg.RedirectURL())

	assert.True(t, cfg.InstrumentationEnabled)
	assert.Equal(t, "calgate", cfg.OTelServiceName)
	assert.Equal(t, "prometheus", cfg.MetricsExporter)
	assert.Equal(t, "none", cfg.TracingExporter)
	assert.InDelta(t, 0.1, cfg.TraceSamplingRate, 0)
	assert.False(t, cfg.MetricsDetailedLabels)
	assert.True(t, cfg.AuditLogging)
	assert.False(t, cfg.AuditIncludePII)
}

func TestLoad_TelemetryOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("TRACING_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1")
	t.Setenv("AUDIT_LOGGING_INCLUDE_PII", "true")
	t.Setenv("K8S_POD_NAME", "calgate-0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.InstrumentationEnabled)
	assert.Equal(t, "otlp", cfg.TracingExporter)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.InDelta(t, 1.0, cfg.TraceSamplingRate, 0)
	assert.True(t, cfg.AuditIncludePII)
	assert.Equal(t, "calgate-0", cfg.K8sPodName)
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "http://backend:9000/")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("STRATEGY", "direct")
	t.Setenv("ENABLE_MCP", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "direct", cfg.Strategy)
	assert.True(t, cfg.EnableMCP)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0)
}

func TestLoad_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Secret(t *testing.T) {
	cfg := &Config{NextAuthSecret: "legacy"}
	assert.Equal(t, []byte("legacy"), cfg.Secret())

	cfg.SessionSecret = "primary"
	assert.Equal(t, []byte("primary"), cfg.Secret())
}

func TestConfig_LandingURL(t *testing.T) {
	cfg := &Config{AppURL: "/"}
	assert.Equal(t, "/", cfg.LandingURL(""))
	assert.Equal(t, "/?error=access_denied", cfg.LandingURL("access_denied"))

	cfg.AppURL = "https://app.example.com/?tab=calendar"
	assert.Equal(t, "https://app.example.com/?tab=calendar&error=state_mismatch", cfg.LandingURL("state_mismatch"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"valid", func(c *Config) {}, ""},
		{"legacy secret", func(c *Config) { c.NextAuthSecret, c.SessionSecret = c.SessionSecret, "" }, ""},
		{"direct strategy", func(c *Config) { c.Strategy = "direct" }, ""},
		{"missing client id", func(c *Config) { c.GoogleClientID = "" }, "GOOGLE_CLIENT_ID"},
		{"missing client secret", func(c *Config) { c.GoogleClientSecret = "" }, "GOOGLE_CLIENT_SECRET"},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }, "at least 32 bytes"},
		{"unknown strategy", func(c *Config) { c.Strategy = "proxy" }, "STRATEGY"},
		{"relative backend url", func(c *Config) { c.BackendURL = "backend:8000" }, "BACKEND_URL"},
		{"negative timeout", func(c *Config) { c.BackendTimeout = -time.Second }, "BACKEND_TIMEOUT"},
		{"negative rate", func(c *Config) { c.RateLimitRPS = -1 }, "RATE_LIMIT"},
		{"telemetry disabled skips exporter checks", func(c *Config) { c.MetricsExporter = "graphite" }, ""},
		{"telemetry defaults", withTelemetry(func(c *Config) {}), ""},
		{"otlp with endpoint", withTelemetry(func(c *Config) {
			c.MetricsExporter, c.TracingExporter, c.OTLPEndpoint = "otlp", "otlp", "collector:4318"
		}), ""},
		{"unknown metrics exporter", withTelemetry(func(c *Config) { c.MetricsExporter = "graphite" }), "METRICS_EXPORTER"},
		{"unknown tracing exporter", withTelemetry(func(c *Config) { c.TracingExporter = "zipkin" }), "TRACING_EXPORTER"},
		{"otlp metrics without endpoint", withTelemetry(func(c *Config) { c.MetricsExporter = "otlp" }), "otlp metrics exporter"},
		{"otlp tracing without endpoint", withTelemetry(func(c *Config) { c.TracingExporter = "otlp" }), "otlp tracing exporter"},
		{"sampling rate above one", withTelemetry(func(c *Config) { c.TraceSamplingRate = 1.5 }), "OTEL_TRACES_SAMPLER_ARG"},
		{"negative sampling rate", withTelemetry(func(c *Config) { c.TraceSamplingRate = -0.1 }), "OTEL_TRACES_SAMPLER_ARG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func withTelemetry(mutate func(c *Config)) func(c *Config) {
	return func(c *Config) {
		c.InstrumentationEnabled = true
		c.MetricsExporter = "prometheus"
		c.TracingExporter = "none"
		c.TraceSamplingRate = 0.1
		mutate(c)
	}
}
