package gateway

import (
	"context"
	"errors"
	"maps"
	"strings"

	"github.com/teemow/calgate/internal/backend"
	"github.com/teemow/calgate/internal/calendar"
	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

const (
	// ListEventsMessage is the instruction sent to the chat backend to list events.
	ListEventsMessage = "fetch calendar events"

	// CreateRejectedMessage replaces an empty backend message on a rejected create.
	CreateRejectedMessage = "Backend event creation failed."
)

// ChatBackend is the part of the backend client the delegated strategy uses.
type ChatBackend interface {
	Chat(ctx context.Context, payload map[string]any) (*backend.ChatReply, error)
}

// Delegated forwards calendar intents to the chat backend, which acts with
// the tokens it holds for the identity.
type Delegated struct {
	backend ChatBackend
}

// NewDelegated creates the delegated strategy.
func NewDelegated(b ChatBackend) *Delegated {
	return &Delegated{backend: b}
}

func (d *Delegated) Name() string { return StrategyDelegated }

// Authenticate only needs an identity; the backend owns the tokens.
func (d *Delegated) Authenticate(sess *session.Session) (Principal, error) {
	return authenticate(sess)
}

// ListEvents asks the backend for the user's events and relays its reply.
func (d *Delegated) ListEvents(ctx context.Context, p Principal) (*Result, error) {
	if !p.valid() {
		return nil, outcome.NewUnauthorized(ErrNoIdentity)
	}

	reply, err := d.backend.Chat(ctx, map[string]any{
		"user_id": p.identity,
		"message": ListEventsMessage,
	})
	return classify(reply, err, "")
}

// CreateEvent forwards payload merged with the caller's identity.
//
// A payload with a natural-language "message" is passed through as is.
// Otherwise it is a structured event and summary, start and end must be present.
func (d *Delegated) CreateEvent(ctx context.Context, p Principal, payload map[string]any) (*Result, error) {
	if !p.valid() {
		return nil, outcome.NewUnauthorized(ErrNoIdentity)
	}

	if !hasMessage(payload) {
		if missing := calendar.MissingFields(payload); len(missing) > 0 {
			return nil, outcome.NewValidation("missing required fields: " + strings.Join(missing, ", "))
		}
	}

	body := make(map[string]any, len(payload)+1)
	maps.Copy(body, payload)
	body["user_id"] = p.identity

	reply, err := d.backend.Chat(ctx, body)
	return classify(reply, err, CreateRejectedMessage)
}

func hasMessage(payload map[string]any) bool {
	msg, ok := payload["message"].(string)
	return ok && strings.TrimSpace(msg) != ""
}

func classify(reply *backend.ChatReply, err error, rejectedFallback string) (*Result, error) {
	o := outcome.Classify(reply, err)

	var rerr *backend.RejectedError
	if o.Kind == outcome.BackendRejected && rejectedFallback != "" && errors.As(err, &rerr) && rerr.Message == "" {
		o.Message = rejectedFallback
	}

	if e := o.Err(); e != nil {
		return nil, e
	}
	return &Result{Payload: o.Reply.Raw}, nil
}
