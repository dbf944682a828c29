// Package logging provides structured logging utilities for calgate.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Logger construction from the configured format and level
//   - PII sanitization (email anonymization, token masking)
//   - Consistent attribute naming across the codebase
//   - A printf-style adapter for resty HTTP clients
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithStrategy(slog.Default(), "delegated")
//	logger.Info("calendar events listed",
//	    logging.Operation("list"),
//	    logging.Outcome("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("session established",
//	    logging.UserHash(email))
//
// # Security Considerations
//
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly
package logging
