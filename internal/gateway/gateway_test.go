package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teemow/calgate/internal/backend"
	"github.com/teemow/calgate/internal/calendar"
	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

type countingCalendar struct {
	calls    atomic.Int32
	lastTok  string
	lastIn   calendar.EventInput
	listErr  error
	insertFn func(calendar.EventInput) (*calendar.Event, error)
}

func (c *countingCalendar) ListUpcoming(_ context.Context, token string) ([]calendar.Event, error) {
	c.calls.Add(1)
	c.lastTok = token
	if c.listErr != nil {
		return nil, c.listErr
	}
	return []calendar.Event{{ID: "evt-1", Summary: "Standup"}}, nil
}

func (c *countingCalendar) Insert(_ context.Context, token string, in calendar.EventInput) (*calendar.Event, error) {
	c.calls.Add(1)
	c.lastTok = token
	c.lastIn = in
	if c.insertFn != nil {
		return c.insertFn(in)
	}
	return &calendar.Event{ID: "created-1", Summary: in.Summary}, nil
}

type countingBackend struct {
	calls atomic.Int32
	last  map[string]any
	reply *backend.ChatReply
	err   error
}

func (b *countingBackend) Chat(_ context.Context, payload map[string]any) (*backend.ChatReply, error) {
	b.calls.Add(1)
	b.last = payload
	return b.reply, b.err
}

func validSession() *session.Session {
	return &session.Session{
		Identity: "jane@example.com",
		Tokens: session.TokenBundle{
			AccessToken:  "ya29.access",
			RefreshToken: "1//refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		IssuedAt: time.Now(),
	}
}

func strategies(cal *countingCalendar, be *countingBackend) []Strategy {
	return []Strategy{NewDirect(cal), NewDelegated(be)}
}

func requireKind(t *testing.T, err error, want outcome.Kind) *outcome.Error {
	t.Helper()
	var e *outcome.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, want, e.Kind, "error: %v", err)
	return e
}

func TestNew(t *testing.T) {
	cal := &countingCalendar{}
	be := &countingBackend{}

	s, err := New(StrategyDirect, Dependencies{Calendar: cal})
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, s.Name())

	s, err = New(StrategyDelegated, Dependencies{Backend: be})
	require.NoError(t, err)
	assert.Equal(t, StrategyDelegated, s.Name())

	_, err = New(StrategyDirect, Dependencies{Backend: be})
	assert.Error(t, err)
	_, err = New(StrategyDelegated, Dependencies{Calendar: cal})
	assert.Error(t, err)
	_, err = New("proxy", Dependencies{Calendar: cal, Backend: be})
	assert.Error(t, err)
}

func TestAuthenticate_NoSessionMakesNoDownstreamCalls(t *testing.T) {
	sessions := map[string]*session.Session{
		"nil session":    nil,
		"empty identity": {Tokens: session.TokenBundle{AccessToken: "ya29.access"}},
	}

	for name, sess := range sessions {
		t.Run(name, func(t *testing.T) {
			cal := &countingCalendar{}
			be := &countingBackend{}

			for _, s := range strategies(cal, be) {
				_, err := s.Authenticate(sess)
				e := requireKind(t, err, outcome.Unauthorized)
				assert.Equal(t, http.StatusUnauthorized, e.HTTPStatus())
				assert.ErrorIs(t, err, ErrNoIdentity)

				// A zero Principal must be refused as well.
				_, err = s.ListEvents(context.Background(), Principal{})
				requireKind(t, err, outcome.Unauthorized)
				_, err = s.CreateEvent(context.Background(), Principal{}, map[string]any{"summary": "x", "start": "2024-01-01T09:00:00Z", "end": "2024-01-01T09:30:00Z"})
				requireKind(t, err, outcome.Unauthorized)
			}

			assert.Zero(t, cal.calls.Load())
			assert.Zero(t, be.calls.Load())
		})
	}
}

func TestDirect_RequiresAccessToken(t *testing.T) {
	cal := &countingCalendar{}
	sess := validSession()
	sess.Tokens.AccessToken = ""

	d := NewDirect(cal)
	_, err := d.Authenticate(sess)
	requireKind(t, err, outcome.Unauthorized)
	assert.ErrorIs(t, err, ErrNoAccessToken)

	// The delegated strategy does not need the access token.
	p, err := NewDelegated(&countingBackend{}).Authenticate(sess)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", p.Identity())

	_, err = d.ListEvents(context.Background(), p)
	requireKind(t, err, outcome.Unauthorized)
	assert.Zero(t, cal.calls.Load())
}

func TestCreateEvent_MissingFieldsMakeNoDownstreamCalls(t *testing.T) {
	payloads := map[string]map[string]any{
		"missing summary": {"start": "2024-01-01T09:00:00Z", "end": "2024-01-01T09:30:00Z"},
		"missing start":   {"summary": "Standup", "end": "2024-01-01T09:30:00Z"},
		"missing end":     {"summary": "Standup", "start": "2024-01-01T09:00:00Z"},
		"empty":           {},
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			cal := &countingCalendar{}
			be := &countingBackend{}

			for _, s := range strategies(cal, be) {
				p, err := s.Authenticate(validSession())
				require.NoError(t, err)

				_, err = s.CreateEvent(context.Background(), p, payload)
				e := requireKind(t, err, outcome.ValidationError)
				assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
				assert.Contains(t, e.Message, "missing required fields")
			}

			assert.Zero(t, cal.calls.Load())
			assert.Zero(t, be.calls.Load())
		})
	}
}

func TestDirect_ListEvents(t *testing.T) {
	cal := &countingCalendar{}
	d := NewDirect(cal)

	p, err := d.Authenticate(validSession())
	require.NoError(t, err)

	res, err := d.ListEvents(context.Background(), p)
	require.NoError(t, err)

	payload := res.Payload.(map[string]any)
	items := payload["items"].([]calendar.Event)
	require.Len(t, items, 1)
	assert.Equal(t, "ya29.access", cal.lastTok)
}

func TestDirect_CreateEvent(t *testing.T) {
	cal := &countingCalendar{}
	d := NewDirect(cal)

	p, err := d.Authenticate(validSession())
	require.NoError(t, err)

	res, err := d.CreateEvent(context.Background(), p, map[string]any{
		"summary": "Standup",
		"start":   "2024-01-01T09:00:00Z",
		"end":     "2024-01-01T09:30:00Z",
	})
	require.NoError(t, err)

	event := res.Payload.(map[string]any)["event"].(*calendar.Event)
	assert.Equal(t, "Standup", event.Summary)
	assert.Equal(t, int32(1), cal.calls.Load())
	assert.True(t, cal.lastIn.Start.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
}

func TestDirect_InvalidTimestamp(t *testing.T) {
	cal := &countingCalendar{}
	d := NewDirect(cal)
	p, _ := d.Authenticate(validSession())

	_, err := d.CreateEvent(context.Background(), p, map[string]any{"summary": "Standup", "start": "9am", "end": "10am"})
	e := requireKind(t, err, outcome.ValidationError)
	assert.Equal(t, "start must be an RFC 3339 timestamp", e.Message)
	assert.Zero(t, cal.calls.Load())
}

func TestDirect_CalendarErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   outcome.Kind
		wantStatus int
	}{
		{"revoked token", &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"}, outcome.Unauthorized, http.StatusUnauthorized},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "Insufficient Permission"}, outcome.UpstreamError, http.StatusForbidden},
		{"network", errors.New("dial tcp: connection refused"), outcome.UpstreamError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &countingCalendar{listErr: tt.err}
			d := NewDirect(cal)
			p, _ := d.Authenticate(validSession())

			_, err := d.ListEvents(context.Background(), p)
			e := requireKind(t, err, tt.wantKind)
			assert.Equal(t, tt.wantStatus, e.HTTPStatus())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, int32(1), cal.calls.Load())
		})
	}
}

func TestDelegated_ListEvents(t *testing.T) {
	be := &countingBackend{reply: &backend.ChatReply{Reply: "You have 2 events", Raw: map[string]any{"reply": "You have 2 events"}}}
	d := NewDelegated(be)
	p, _ := d.Authenticate(validSession())

	res, err := d.ListEvents(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"reply": "You have 2 events"}, res.Payload)
	assert.Equal(t, map[string]any{"user_id": "jane@example.com", "message": ListEventsMessage}, be.last)
}

func TestDelegated_CreateEventIdentityWins(t *testing.T) {
	be := &countingBackend{reply: &backend.ChatReply{Reply: "Event created", Raw: map[string]any{"reply": "Event created"}}}
	d := NewDelegated(be)
	p, _ := d.Authenticate(validSession())

	payload := map[string]any{
		"user_id": "mallory@example.com",
		"message": "schedule lunch tomorrow at noon",
	}
	res, err := d.CreateEvent(context.Background(), p, payload)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", be.last["user_id"])
	assert.Equal(t, "schedule lunch tomorrow at noon", be.last["message"])
	assert.Equal(t, "mallory@example.com", payload["user_id"], "caller payload must not be mutated")
	assert.Equal(t, map[string]any{"reply": "Event created"}, res.Payload)
}

func TestCreateEvent_MessageSkipsFieldCheckOnlyWhenDelegated(t *testing.T) {
	tests := []struct {
		name        string
		payload     map[string]any
		delegatedOK bool
	}{
		{"message only", map[string]any{"message": "standup tomorrow at nine"}, true},
		{"blank message", map[string]any{"message": "   "}, false},
		{"non-string message", map[string]any{"message": 42}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &countingCalendar{}
			be := &countingBackend{reply: &backend.ChatReply{Reply: "ok", Raw: map[string]any{"reply": "ok"}}}

			direct, delegated := NewDirect(cal), NewDelegated(be)
			p, err := direct.Authenticate(validSession())
			require.NoError(t, err)

			_, err = direct.CreateEvent(context.Background(), p, tt.payload)
			requireKind(t, err, outcome.ValidationError)
			assert.Zero(t, cal.calls.Load())

			_, err = delegated.CreateEvent(context.Background(), p, tt.payload)
			if tt.delegatedOK {
				require.NoError(t, err)
				assert.Equal(t, int32(1), be.calls.Load())
				return
			}
			requireKind(t, err, outcome.ValidationError)
			assert.Zero(t, be.calls.Load())
		})
	}
}

func TestDelegated_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		reply       *backend.ChatReply
		err         error
		create      bool
		wantKind    outcome.Kind
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "application failure",
			reply:       &backend.ChatReply{Reply: "Failed to schedule: conflict"},
			wantKind:    outcome.ApplicationFailure,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Failed to schedule: conflict",
		},
		{
			name:        "rejected list",
			err:         &backend.RejectedError{Endpoint: backend.EndpointChat, Status: http.StatusNotFound},
			wantKind:    outcome.BackendRejected,
			wantStatus:  http.StatusNotFound,
			wantMessage: outcome.DefaultRejectedMessage,
		},
		{
			name:        "rejected create",
			err:         &backend.RejectedError{Endpoint: backend.EndpointChat, Status: http.StatusNotFound},
			create:      true,
			wantKind:    outcome.BackendRejected,
			wantStatus:  http.StatusNotFound,
			wantMessage: CreateRejectedMessage,
		},
		{
			name:        "rejected create with message",
			err:         &backend.RejectedError{Endpoint: backend.EndpointChat, Status: http.StatusUnauthorized, Message: "no tokens stored"},
			create:      true,
			wantKind:    outcome.BackendRejected,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "no tokens stored",
		},
		{
			name:        "unreachable",
			err:         &backend.UnreachableError{URL: "http://localhost:8000", Endpoint: backend.EndpointChat, Err: errors.New("refused")},
			wantKind:    outcome.BackendUnreachable,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to connect to backend service at http://localhost:8000.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &countingBackend{reply: tt.reply, err: tt.err}
			d := NewDelegated(be)
			p, _ := d.Authenticate(validSession())

			var err error
			if tt.create {
				_, err = d.CreateEvent(context.Background(), p, map[string]any{"message": "add standup"})
			} else {
				_, err = d.ListEvents(context.Background(), p)
			}

			e := requireKind(t, err, tt.wantKind)
			assert.Equal(t, tt.wantStatus, e.HTTPStatus())
			assert.Equal(t, tt.wantMessage, e.Message)
			assert.Equal(t, int32(1), be.calls.Load())
		})
	}
}

func TestDelegated_ConnectionErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	d := NewDelegated(backend.NewClient(backend.Config{BaseURL: server.URL}))
	p, _ := d.Authenticate(validSession())

	_, err := d.CreateEvent(context.Background(), p, map[string]any{
		"summary": "Standup",
		"start":   "2024-01-01T09:00:00Z",
		"end":     "2024-01-01T09:30:00Z",
	})
	e := requireKind(t, err, outcome.BackendUnreachable)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
	assert.Equal(t, int32(1), hits.Load())
}

func TestDirect_CreateRoundTripThroughCalendarAPI(t *testing.T) {
	var inserted map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&inserted))
		inserted["id"] = "created-1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(inserted)
	}))
	defer server.Close()

	client, err := calendar.NewClient(calendar.Config{
		TimeZone:  "Asia/Kolkata",
		Endpoint:  server.URL + "/",
		Transport: http.DefaultTransport,
	})
	require.NoError(t, err)

	d := NewDirect(client)
	p, err := d.Authenticate(validSession())
	require.NoError(t, err)

	res, err := d.CreateEvent(context.Background(), p, map[string]any{
		"summary": "Standup",
		"start":   "2024-01-01T09:00:00Z",
		"end":     "2024-01-01T09:30:00Z",
	})
	require.NoError(t, err)

	event := res.Payload.(map[string]any)["event"].(*calendar.Event)
	assert.Equal(t, "Standup", event.Summary)
	assert.Equal(t, "Asia/Kolkata", event.Start.TimeZone)
	assert.Equal(t, "Asia/Kolkata", event.End.TimeZone)
	assert.Equal(t, "2024-01-01T14:30:00+05:30", event.Start.DateTime)
	assert.Equal(t, "2024-01-01T15:00:00+05:30", event.End.DateTime)
}
