// Package config loads calgate's configuration from the environment.
//
// Values are read once at start. The serve command may override individual
// values with explicitly set flags; there is no runtime reload.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MinSecretLength is the minimum length of the session secret.
const MinSecretLength = 32

// Config holds the configuration for the gateway.
type Config struct {
	// Google OAuth client credentials
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`

	// Comma-separated scopes requested in addition to the defaults
	GoogleScopes string `envconfig:"GOOGLE_SCOPES"`

	// Session signing secret. NEXTAUTH_SECRET is accepted for existing deployments.
	SessionSecret  string `envconfig:"SESSION_SECRET"`
	NextAuthSecret string `envconfig:"NEXTAUTH_SECRET"`

	// Chat backend
	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://localhost:8000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`

	// Public URL of this service, used to build the OAuth redirect URL
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Where the browser lands after sign-in, sign-out or a failed sign-in
	AppURL string `envconfig:"APP_URL" default:"/"`

	// Gateway strategy: direct or delegated
	Strategy         string `envconfig:"STRATEGY" default:"delegated"`
	CalendarTimeZone string `envconfig:"CALENDAR_TIMEZONE" default:"Asia/Kolkata"`

	// Listeners
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`

	// Logging
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Cookies and request limits
	CookieSecure   bool    `envconfig:"COOKIE_SECURE" default:"false"`
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// Optional MCP endpoint
	EnableMCP bool `envconfig:"ENABLE_MCP" default:"false"`

	// OpenTelemetry
	InstrumentationEnabled bool    `envconfig:"INSTRUMENTATION_ENABLED" default:"true"`
	OTelServiceName        string  `envconfig:"OTEL_SERVICE_NAME" default:"calgate"`
	OTelInstanceID         string  `envconfig:"OTEL_SERVICE_INSTANCE_ID"`
	MetricsExporter        string  `envconfig:"METRICS_EXPORTER" default:"prometheus"`
	TracingExporter        string  `envconfig:"TRACING_EXPORTER" default:"none"`
	OTLPEndpoint           string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure           bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
	TraceSamplingRate      float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"0.1"`
	MetricsDetailedLabels  bool    `envconfig:"METRICS_DETAILED_LABELS" default:"false"`
	K8sNamespace           string  `envconfig:"K8S_NAMESPACE"`
	K8sPodName             string  `envconfig:"K8S_POD_NAME"`

	// Audit log of gateway invocations. Full emails are logged only with
	// AUDIT_LOGGING_INCLUDE_PII.
	AuditLogging    bool `envconfig:"AUDIT_LOGGING_ENABLED" default:"true"`
	AuditIncludePII bool `envconfig:"AUDIT_LOGGING_INCLUDE_PII" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Secret returns the session secret, falling back to NEXTAUTH_SECRET.
func (c *Config) Secret() []byte {
	if c.SessionSecret != "" {
		return []byte(c.SessionSecret)
	}
	return []byte(c.NextAuthSecret)
}

// RedirectURL is the OAuth callback registered with Google.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/callback"
}

// LandingURL returns the app URL with an error code attached, or the plain
// app URL when code is empty.
func (c *Config) LandingURL(code string) string {
	if code == "" {
		return c.AppURL
	}
	sep := "?"
	if strings.Contains(c.AppURL, "?") {
		sep = "&"
	}
	return c.AppURL + sep + "error=" + url.QueryEscape(code)
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if n := len(c.Secret()); n < MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", MinSecretLength, n))
	}

	switch c.Strategy {
	case "direct", "delegated":
	default:
		errs = append(errs, fmt.Errorf("STRATEGY must be %q or %q, got %q", "direct", "delegated", c.Strategy))
	}

	for name, raw := range map[string]string{"BACKEND_URL": c.BackendURL, "BASE_URL": c.BaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if c.BackendTimeout < 0 {
		errs = append(errs, errors.New("BACKEND_TIMEOUT must not be negative"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative"))
	}

	if c.InstrumentationEnabled {
		errs = append(errs, c.validateTelemetry()...)
	}

	return errors.Join(errs...)
}

func (c *Config) validateTelemetry() []error {
	var errs []error

	switch c.MetricsExporter {
	case "prometheus", "stdout":
	case "otlp":
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp metrics exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("METRICS_EXPORTER must be prometheus, otlp or stdout, got %q", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "none", "stdout":
	case "otlp":
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp tracing exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRACING_EXPORTER must be otlp, stdout or none, got %q", c.TracingExporter))
	}

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1, got %g", c.TraceSamplingRate))
	}

	return errs
}
