// Package google is the identity provider adapter for Google sign-in.
//
// It drives the OAuth2 authorization-code flow with offline access and forced
// consent, so Google issues a refresh token even to returning users. A
// successful callback yields a session.Grant holding the verified email and
// the issued tokens. The package never stores tokens itself.
//
// It also provides the HTTP client used for Google API calls. The client pins
// HTTP/1.1 and is instrumented with OpenTelemetry.
package google
