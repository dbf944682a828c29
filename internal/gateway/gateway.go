package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

// Strategy names accepted by New.
const (
	StrategyDirect    = "direct"
	StrategyDelegated = "delegated"
)

// ErrNoIdentity is the cause of every Unauthorized raised by Authenticate.
var ErrNoIdentity = errors.New("no authenticated identity")

// Principal is an authenticated caller. Only Authenticate creates one, so
// holding a Principal proves a session was resolved.
type Principal struct {
	identity    string
	accessToken string
}

// Identity returns the caller's verified email.
func (p Principal) Identity() string {
	return p.identity
}

func (p Principal) valid() bool {
	return p.identity != ""
}

// Result is the JSON-serializable body returned to the caller on success.
type Result struct {
	Payload any
}

// Strategy is the single capability contract of the request gateway.
// Failures are returned as *outcome.Error.
type Strategy interface {
	Name() string
	Authenticate(sess *session.Session) (Principal, error)
	ListEvents(ctx context.Context, p Principal) (*Result, error)
	// CreateEvent requires summary, start and end, except that the delegated
	// strategy skips the check when payload carries a non-empty "message".
	CreateEvent(ctx context.Context, p Principal, payload map[string]any) (*Result, error)
}

// authenticate is shared by all strategies: no session or no identity is Unauthorized.
func authenticate(sess *session.Session) (Principal, error) {
	if sess == nil || sess.Identity == "" {
		return Principal{}, outcome.NewUnauthorized(ErrNoIdentity)
	}
	return Principal{identity: sess.Identity, accessToken: sess.Tokens.AccessToken}, nil
}

// Dependencies holds what the strategies need. Only the one matching the
// selected strategy has to be set.
type Dependencies struct {
	Calendar CalendarAPI
	Backend  ChatBackend
}

// New selects a strategy by name.
func New(name string, deps Dependencies) (Strategy, error) {
	switch name {
	case StrategyDirect:
		if deps.Calendar == nil {
			return nil, fmt.Errorf("strategy %q requires a calendar client", name)
		}
		return NewDirect(deps.Calendar), nil
	case StrategyDelegated:
		if deps.Backend == nil {
			return nil, fmt.Errorf("strategy %q requires a backend client", name)
		}
		return NewDelegated(deps.Backend), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (expected %q or %q)", name, StrategyDirect, StrategyDelegated)
	}
}
