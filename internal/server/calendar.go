package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/calgate/internal/gateway"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

// maxBodyBytes caps request bodies accepted by the calendar endpoints.
const maxBodyBytes = 1 << 20

// handleListEvents lists upcoming events.
// GET /calendar/events
func (s *HTTPServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Strategy.ListEvents(r.Context(), p)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Payload)
}

// handleCreateEvent creates an event from the JSON object in the body.
// POST /calendar/events
func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var payload map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil || payload == nil {
		s.writeFailure(w, r, outcome.NewValidation("Invalid JSON body"))
		return
	}

	res, err := s.deps.Strategy.CreateEvent(r.Context(), p, payload)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Payload)
}

// authenticate resolves the session cookie into a Principal. A missing,
// expired or forged cookie all end up as Unauthorized from the strategy.
func (s *HTTPServer) authenticate(w http.ResponseWriter, r *http.Request) (gateway.Principal, bool) {
	sess, err := s.deps.Store.Resolve(r)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		s.logger.Debug("session rejected", logging.Err(err), logging.RequestID(RequestIDFrom(r.Context())))
	}

	p, err := s.deps.Strategy.Authenticate(sess)
	if err != nil {
		s.writeFailure(w, r, err)
		return gateway.Principal{}, false
	}
	return p, true
}

// writeFailure answers with {"error": message} and the status of the outcome.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	oe := outcome.AsError(err)
	status := oe.HTTPStatus()

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.LogAttrs(r.Context(), level, "calendar request failed",
		logging.Outcome(oe.Kind.String()),
		slog.Int("status", status),
		logging.Err(err),
		logging.RequestID(RequestIDFrom(r.Context())),
	)

	writeError(w, status, oe.Message)
}
