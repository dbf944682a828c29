package instrumentation

import "strings"

// Metric label values.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusUnreachable = "unreachable"

	SignInResultSuccess = "success"
	SignInResultFailure = "failure"
	SignInResultDenied  = "denied"

	ServiceCalendar = "calendar"
	ServiceOAuth2   = "oauth2"

	OperationAuthenticate = "authenticate"
	OperationList         = "list"
	OperationCreate       = "create"
	OperationUserInfo     = "userinfo"
	OperationExchange     = "exchange"
)

// Exporter names accepted in Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// userDomain reduces an email to its domain so per-user values never become
// label values.
func userDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return domain
}
