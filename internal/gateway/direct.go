package gateway

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/teemow/calgate/internal/calendar"
	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

// ErrNoAccessToken is the cause of Unauthorized when a session carries no access token.
var ErrNoAccessToken = errors.New("session has no access token")

// CalendarAPI is the part of the Calendar client the direct strategy uses.
type CalendarAPI interface {
	ListUpcoming(ctx context.Context, accessToken string) ([]calendar.Event, error)
	Insert(ctx context.Context, accessToken string, input calendar.EventInput) (*calendar.Event, error)
}

// Direct calls the Google Calendar API with the user's own access token.
type Direct struct {
	api CalendarAPI
}

// NewDirect creates the direct strategy.
func NewDirect(api CalendarAPI) *Direct {
	return &Direct{api: api}
}

func (d *Direct) Name() string { return StrategyDirect }

// Authenticate requires an identity and an access token.
func (d *Direct) Authenticate(sess *session.Session) (Principal, error) {
	p, err := authenticate(sess)
	if err != nil {
		return Principal{}, err
	}
	if p.accessToken == "" {
		return Principal{}, outcome.NewUnauthorized(ErrNoAccessToken)
	}
	return p, nil
}

// ListEvents returns {items: [...]} with the user's upcoming events.
func (d *Direct) ListEvents(ctx context.Context, p Principal) (*Result, error) {
	if err := d.check(p); err != nil {
		return nil, err
	}

	events, err := d.api.ListUpcoming(ctx, p.accessToken)
	if err != nil {
		return nil, calendarError(err)
	}
	return &Result{Payload: map[string]any{"items": events}}, nil
}

// CreateEvent validates payload and returns {event: ...} for the created event.
func (d *Direct) CreateEvent(ctx context.Context, p Principal, payload map[string]any) (*Result, error) {
	if err := d.check(p); err != nil {
		return nil, err
	}

	input, err := calendar.ParseEventInput(payload)
	if err != nil {
		return nil, validationError(err)
	}

	event, err := d.api.Insert(ctx, p.accessToken, input)
	if err != nil {
		return nil, calendarError(err)
	}
	return &Result{Payload: map[string]any{"event": event}}, nil
}

func (d *Direct) check(p Principal) error {
	if !p.valid() {
		return outcome.NewUnauthorized(ErrNoIdentity)
	}
	if p.accessToken == "" {
		return outcome.NewUnauthorized(ErrNoAccessToken)
	}
	return nil
}

func validationError(err error) error {
	var inputErr *calendar.InputError
	if errors.As(err, &inputErr) {
		return outcome.NewValidation(inputErr.Message)
	}
	return outcome.NewValidation(err.Error())
}

// calendarError maps a Calendar API failure. A rejected token means the user
// has to sign in again.
func calendarError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return outcome.NewUnauthorized(err)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return outcome.NewUpstream(apiErr.Code, "Calendar API error: "+msg, err)
	}
	return outcome.NewUpstream(http.StatusBadGateway, "Failed to reach Google Calendar", err)
}
