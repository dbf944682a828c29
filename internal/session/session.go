package session

import (
	"strings"
	"time"
)

// DefaultLifetime bounds a session whose grant carried no expiry.
const DefaultLifetime = time.Hour

// TokenBundle is the credential set issued by the identity provider.
// Any field may be empty when the provider omitted it.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ExpiresAtUnix returns the expiry in epoch seconds, or 0 when unknown.
func (t TokenBundle) ExpiresAtUnix() int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Unix()
}

// Grant is the result of one successful authorization round trip.
type Grant struct {
	Identity string
	Tokens   TokenBundle
}

// IssuedRefreshToken reports whether the provider handed out a refresh token
// in this grant, which only happens on first consent or re-consent.
func (g Grant) IssuedRefreshToken() bool {
	return g.Tokens.RefreshToken != ""
}

// Session is the authenticated user's identity plus the current token bundle.
// It is a value: renewal goes through Establish and never mutates an existing Session.
type Session struct {
	Identity string
	Tokens   TokenBundle
	IssuedAt time.Time
}

// Establish builds the session for a fresh grant.
//
// When prev belongs to the same identity and the grant carries no refresh
// token, the previously known refresh token is retained. Access token and
// expiry always come from the new grant.
func Establish(prev *Session, grant Grant, now time.Time) Session {
	tokens := grant.Tokens
	if tokens.RefreshToken == "" && prev != nil && sameIdentity(prev.Identity, grant.Identity) {
		tokens.RefreshToken = prev.Tokens.RefreshToken
	}

	return Session{
		Identity: grant.Identity,
		Tokens:   tokens,
		IssuedAt: now.Truncate(time.Second),
	}
}

// ExpiresAt returns the instant the session stops being valid.
func (s Session) ExpiresAt() time.Time {
	if !s.Tokens.ExpiresAt.IsZero() {
		return s.Tokens.ExpiresAt
	}
	return s.IssuedAt.Add(DefaultLifetime)
}

// Expired compares in epoch seconds: a session is expired once now >= expires_at.
func (s Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt().Unix()
}

func sameIdentity(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
