package logging

import (
	"fmt"
	"log/slog"
)

// RestyLogger adapts an slog.Logger to the printf-style logger interface used by
// resty clients, so outbound HTTP client diagnostics land in the structured log.
type RestyLogger struct {
	logger *slog.Logger
}

// NewRestyLogger creates a RestyLogger wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewRestyLogger(logger *slog.Logger) *RestyLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RestyLogger{logger: logger.With(slog.String("component", "resty"))}
}

// Errorf logs a formatted message at error level.
func (a *RestyLogger) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a formatted message at warn level.
func (a *RestyLogger) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// Debugf logs a formatted message at debug level.
func (a *RestyLogger) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *RestyLogger) Logger() *slog.Logger {
	return a.logger
}
