package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/teemow/calgate/internal/config"
	"github.com/teemow/calgate/internal/gateway"
	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/session"
)

// MCPPath is where the optional MCP endpoint is mounted.
const MCPPath = "/mcp"

// Dependencies are the collaborators of the HTTP server.
type Dependencies struct {
	Store    *session.Store
	Provider IdentityProvider
	Syncer   TokenDispatcher
	Strategy gateway.Strategy
	Health   *HealthChecker

	// MCP is the streamable-HTTP MCP handler. Nil leaves /mcp unmounted.
	MCP http.Handler

	// Metrics may be nil.
	Metrics *instrumentation.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPServer is the browser-facing listener: sign-in, session and calendar
// routes plus health endpoints and the optional MCP endpoint.
type HTTPServer struct {
	cfg        *config.Config
	deps       Dependencies
	logger     *slog.Logger
	limiter    *RateLimiter
	handler    http.Handler
	httpServer *http.Server
}

// New wires the router. It does not start listening.
func New(cfg *config.Config, deps Dependencies) (*HTTPServer, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil || deps.Provider == nil || deps.Syncer == nil || deps.Strategy == nil {
		return nil, errors.New("session store, identity provider, token syncer and strategy are required")
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker(deps.Strategy.Name())
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		limiter: NewRateLimiter(RateLimiterConfig{
			Rate:   rate.Limit(cfg.RateLimitRPS),
			Burst:  cfg.RateLimitBurst,
			Logger: logger,
		}),
	}
	s.handler = otelhttp.NewHandler(s.routes(), "calgate",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
	)
	return s, nil
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger, s.deps.Metrics))
	r.Use(recoverer(s.logger))
	r.Use(securityHeaders)

	s.deps.Health.RegisterHealthEndpoints(r)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", s.handleLogin)
			r.Get("/callback", s.handleCallback)
			r.Post("/logout", s.handleLogout)
			r.Get("/session", s.handleSession)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
		})

		if s.deps.MCP != nil {
			r.With(s.requireSession).Handle(MCPPath, s.deps.MCP)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// requireSession rejects MCP requests without a valid session and hands the
// session to the tool handlers through the request context.
func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Store.Resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
	})
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Shutdown.
func (s *HTTPServer) Start(addr string) error {
	if err := validateHTTPSRequirement(s.cfg.BaseURL); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: MCP responses may stream.
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		slog.String("addr", ln.Addr().String()),
		logging.Strategy(s.deps.Strategy.Name()),
		slog.Bool("mcp", s.deps.MCP != nil),
	)
	return s.httpServer.Serve(ln)
}

// Shutdown fails readiness, stops accepting requests and waits for in-flight
// ones until ctx is done.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.deps.Health.SetReady(false)
	s.limiter.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// validateHTTPSRequirement requires HTTPS for the public URL except on
// loopback, since the session cookie carries Google tokens.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("HTTPS is required for a non-local base URL (got: %s). Use HTTPS or localhost for development", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme: %q. Must be http (localhost only) or https", u.Scheme)
	}
}
