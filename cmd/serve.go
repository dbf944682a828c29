package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calgate/internal/backend"
	"github.com/teemow/calgate/internal/calendar"
	"github.com/teemow/calgate/internal/config"
	"github.com/teemow/calgate/internal/gateway"
	"github.com/teemow/calgate/internal/google"
	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/server"
	"github.com/teemow/calgate/internal/session"
	"github.com/teemow/calgate/internal/tokensync"
	"github.com/teemow/calgate/internal/tools/calendar_tools"
)

// metricsStartupTimeout bounds how long serve waits for the metrics listener.
const metricsStartupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendar gateway",
		Long: `Start the calendar gateway HTTP server.

Configuration is read from the environment (GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET,
SESSION_SECRET, BACKEND_URL, STRATEGY, ...). A flag that is set explicitly overrides
the matching environment variable.

Routes:
  /auth/login, /auth/callback    Google sign-in
  /auth/logout, /auth/session    session management
  /calendar/events               list (GET) and create (POST) events
  /mcp                           MCP tools (when --enable-mcp is set)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlagOverrides(cmd, cfg); err != nil {
				return err
			}
			if debugMode {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	// Listener flags
	cmd.Flags().String("http-addr", ":8080", "HTTP listen address. Can also use HTTP_ADDR env var.")
	cmd.Flags().String("base-url", "http://localhost:8080", "Public URL of this service, used for the OAuth redirect. Can also use BASE_URL env var.")
	cmd.Flags().String("app-url", "/", "Where the browser lands after sign-in. Can also use APP_URL env var.")

	// Gateway flags
	cmd.Flags().String("strategy", gateway.StrategyDelegated, "Gateway strategy: direct or delegated. Can also use STRATEGY env var.")
	cmd.Flags().String("backend-url", "http://localhost:8000", "Chat backend base URL. Can also use BACKEND_URL env var.")
	cmd.Flags().Duration("backend-timeout", 30*time.Second, "Timeout for backend and Google calls. Can also use BACKEND_TIMEOUT env var.")
	cmd.Flags().String("calendar-timezone", "Asia/Kolkata", "Time zone for events created in direct mode. Can also use CALENDAR_TIMEZONE env var.")
	cmd.Flags().String("google-scopes", "", "Additional OAuth scopes requested on sign-in (comma-separated). Can also use GOOGLE_SCOPES env var.")

	// Security flags
	cmd.Flags().Bool("cookie-secure", false, "Set the Secure attribute on cookies. Can also use COOKIE_SECURE env var.")
	cmd.Flags().Float64("rate-limit-rps", 10, "Per-client request rate (0 disables rate limiting). Can also use RATE_LIMIT_RPS env var.")
	cmd.Flags().Int("rate-limit-burst", 20, "Per-client burst size. Can also use RATE_LIMIT_BURST env var.")

	// MCP
	cmd.Flags().Bool("enable-mcp", false, "Expose the calendar operations as MCP tools at /mcp. Can also use ENABLE_MCP env var.")

	// Logging flags
	cmd.Flags().String("log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error. Can also use LOG_LEVEL env var.")

	// Metrics server flags
	cmd.Flags().Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	// OpenTelemetry flags
	cmd.Flags().Bool("instrumentation-enabled", true, "Enable metrics and tracing. Can also use INSTRUMENTATION_ENABLED env var.")
	cmd.Flags().String("metrics-exporter", instrumentation.ExporterPrometheus, "Metrics exporter: prometheus, otlp or stdout. Can also use METRICS_EXPORTER env var.")
	cmd.Flags().String("tracing-exporter", instrumentation.ExporterNone, "Tracing exporter: otlp, stdout or none. Can also use TRACING_EXPORTER env var.")
	cmd.Flags().String("otlp-endpoint", "", "OTLP collector host:port. Can also use OTEL_EXPORTER_OTLP_ENDPOINT env var.")
	cmd.Flags().Bool("otlp-insecure", false, "Send OTLP without TLS. Can also use OTEL_EXPORTER_OTLP_INSECURE env var.")
	cmd.Flags().Float64("trace-sampling-rate", 0.1, "Trace sampling ratio between 0 and 1. Can also use OTEL_TRACES_SAMPLER_ARG env var.")

	return cmd
}

// applyFlagOverrides copies every explicitly set flag over the value loaded
// from the environment. Flags left at their default never override.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"http-addr":         &cfg.HTTPAddr,
		"base-url":          &cfg.BaseURL,
		"app-url":           &cfg.AppURL,
		"strategy":          &cfg.Strategy,
		"backend-url":       &cfg.BackendURL,
		"calendar-timezone": &cfg.CalendarTimeZone,
		"google-scopes":     &cfg.GoogleScopes,
		"log-format":        &cfg.LogFormat,
		"log-level":         &cfg.LogLevel,
		"metrics-addr":      &cfg.MetricsAddr,
		"metrics-exporter":  &cfg.MetricsExporter,
		"tracing-exporter":  &cfg.TracingExporter,
		"otlp-endpoint":     &cfg.OTLPEndpoint,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	boolFlags := map[string]*bool{
		"cookie-secure":   &cfg.CookieSecure,
		"enable-mcp":      &cfg.EnableMCP,
		"metrics-enabled": &cfg.MetricsEnabled,

		"instrumentation-enabled": &cfg.InstrumentationEnabled,
		"otlp-insecure":           &cfg.OTLPInsecure,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("backend-timeout") {
		v, err := flags.GetDuration("backend-timeout")
		if err != nil {
			return err
		}
		cfg.BackendTimeout = v
	}
	if flags.Changed("rate-limit-rps") {
		v, err := flags.GetFloat64("rate-limit-rps")
		if err != nil {
			return err
		}
		cfg.RateLimitRPS = v
	}
	if flags.Changed("trace-sampling-rate") {
		v, err := flags.GetFloat64("trace-sampling-rate")
		if err != nil {
			return err
		}
		cfg.TraceSamplingRate = v
	}
	if flags.Changed("rate-limit-burst") {
		v, err := flags.GetInt("rate-limit-burst")
		if err != nil {
			return err
		}
		cfg.RateLimitBurst = v
	}

	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return nil
}

func runServe(cfg *config.Config) error {
	logger := logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := instrumentation.NewProvider(shutdownCtx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	metricsServer, err := startMetricsServer(cfg, provider, logger)
	if err != nil {
		return err
	}

	store, err := session.NewStore(session.Config{
		Secret: cfg.Secret(),
		Secure: cfg.CookieSecure,
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	identity, err := google.NewProvider(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       signInScopes(cfg.GoogleScopes),
		Timeout:      cfg.BackendTimeout,
		Transport:    google.NewTransport(),
		Metrics:      metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create identity provider: %w", err)
	}

	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
		Metrics: metrics,
	})

	syncer := tokensync.New(backendClient, tokensync.Config{
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
		Metrics: metrics,
	})

	deps := gateway.Dependencies{Backend: backendClient}
	if cfg.Strategy == gateway.StrategyDirect {
		calClient, err := calendar.NewClient(calendar.Config{
			TimeZone:  cfg.CalendarTimeZone,
			Timeout:   cfg.BackendTimeout,
			Transport: google.NewTransport(),
			Metrics:   metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create calendar client: %w", err)
		}
		deps.Calendar = calClient
	}

	strategy, err := gateway.New(cfg.Strategy, deps)
	if err != nil {
		return err
	}
	strategy = gateway.Instrument(strategy, gateway.Observer{
		Metrics: metrics,
		Audit:   provider.Audit(),
		Logger:  logger,
	})

	var mcpHandler http.Handler
	if cfg.EnableMCP {
		// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
		mcpSrv := mcpserver.NewMCPServer("calgate", version,
			mcpserver.WithToolCapabilities(true),
		)
		calendar_tools.RegisterCalendarTools(mcpSrv, strategy, metrics)
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath(server.MCPPath),
		)
	}

	health := server.NewHealthChecker(strategy.Name())
	httpServer, err := server.New(cfg, server.Dependencies{
		Store:    store,
		Provider: identity,
		Syncer:   syncer,
		Strategy: strategy,
		Health:   health,
		MCP:      mcpHandler,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	var runErr error
	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	if err := syncer.Wait(ctx); err != nil {
		logger.Warn("token syncs still running at shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down metrics server", logging.Err(err))
		}
	}

	if runErr == nil {
		logger.Info("HTTP server gracefully stopped")
	}
	return runErr
}

// startMetricsServer starts the Prometheus listener and waits until it is
// bound. It returns nil when metrics are disabled.
// telemetryConfig maps the process configuration onto the instrumentation
// provider settings.
func telemetryConfig(cfg *config.Config) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:     cfg.OTelServiceName,
		ServiceVersion:  version,
		InstanceID:      cfg.OTelInstanceID,
		K8sNamespace:    cfg.K8sNamespace,
		K8sPodName:      cfg.K8sPodName,
		Enabled:         cfg.InstrumentationEnabled,
		MetricsExporter: cfg.MetricsExporter,
		TracingExporter: cfg.TracingExporter,
		OTLPEndpoint:    cfg.OTLPEndpoint,
		OTLPInsecure:    cfg.OTLPInsecure,
		SampleRate:      cfg.TraceSamplingRate,
		DetailedLabels:  cfg.MetricsDetailedLabels,
		Audit: instrumentation.AuditLoggingConfig{
			Enabled:    cfg.AuditLogging,
			IncludePII: cfg.AuditIncludePII,
		},
	}
}

// startMetricsServer serves /metrics when metrics are scraped rather than
// pushed. Other exporters leave the dedicated port closed.
func startMetricsServer(cfg *config.Config, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	if !cfg.MetricsEnabled || !provider.Enabled() || cfg.MetricsExporter != instrumentation.ExporterPrometheus {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.MetricsAddr,
		Enabled:                 true,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

// signInScopes returns the default scopes plus any extra ones from raw.
func signInScopes(raw string) []string {
	scopes := slices.Clone(google.DefaultScopes)
	for _, s := range parseCommaSeparatedList(raw) {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
