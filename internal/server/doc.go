// Package server provides calgate's HTTP listeners.
//
// # Key Components
//
// HTTPServer is the browser-facing chi router:
//   - /auth/login and /auth/callback run the Google authorization-code flow
//     and issue the signed session cookie
//   - /auth/logout and /auth/session manage and describe the session
//   - /calendar/events lists (GET) and creates (POST) events through the
//     configured gateway strategy
//   - /mcp optionally exposes the same operations as MCP tools
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed for
// Kubernetes health checks. MetricsServer serves Prometheus metrics on a dedicated
// port.
//
// # Security Features
//
//   - OAuth state parameter bound to a short-lived HttpOnly cookie
//   - HTTPS required for the public base URL (localhost exempt for development)
//   - Per-client-IP rate limiting with Retry-After
//   - Security headers on all HTTP responses
//   - Request IDs propagated through logs
package server
