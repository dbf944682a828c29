package google

// DefaultScopes are requested on every sign-in.
//
// The scopes provide access to:
//   - OpenID Connect identity (email, profile)
//   - Google Calendar: full access and events
//   - Gmail: read and send, used by the chat backend's automations
var DefaultScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"email",
	"profile",

	// Google Calendar scopes
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",

	// Gmail scopes
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
}
