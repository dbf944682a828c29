package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calgate/internal/google"
	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/session"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

// IdentityProvider runs the authorization-code flow against the identity provider.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*session.Grant, error)
}

// TokenDispatcher hands a fresh grant to the backend token sync.
type TokenDispatcher interface {
	Dispatch(ctx context.Context, grant session.Grant) bool
}

type sessionInfo struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin starts the OAuth flow.
// GET /auth/login
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.setStateCookie(w, state, int(oauthStateMaxAge.Seconds()))
	http.Redirect(w, r, s.deps.Provider.AuthCodeURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow and establishes the session.
// GET /auth/callback?code=...&state=...
func (s *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookie)
	s.setStateCookie(w, "", -1)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		s.signInFailed(w, r, google.ErrStateMismatch)
		return
	}

	code, err := google.CallbackCode(query)
	if err != nil {
		s.signInFailed(w, r, err)
		return
	}

	grant, err := s.deps.Provider.Exchange(ctx, code)
	if err != nil {
		s.signInFailed(w, r, err)
		return
	}

	sess := session.Establish(s.deps.Store.Previous(r), *grant, s.deps.Store.Now())
	if err := s.deps.Store.Issue(w, sess); err != nil {
		s.signInFailed(w, r, err)
		return
	}

	synced := s.deps.Syncer.Dispatch(ctx, *grant)
	s.deps.Metrics.RecordSignIn(ctx, instrumentation.SignInResultSuccess)
	s.logger.Info("user signed in",
		logging.UserHash(sess.Identity),
		slog.Bool("refresh_token_issued", grant.IssuedRefreshToken()),
		slog.Bool("token_sync_dispatched", synced),
		logging.RequestID(RequestIDFrom(ctx)),
	)

	http.Redirect(w, r, s.cfg.LandingURL(""), http.StatusFound)
}

func (s *HTTPServer) signInFailed(w http.ResponseWriter, r *http.Request, err error) {
	result := instrumentation.SignInResultFailure
	if errors.Is(err, google.ErrAccessDenied) {
		result = instrumentation.SignInResultDenied
	}
	s.deps.Metrics.RecordSignIn(r.Context(), result)

	code := google.ErrorCode(err)
	s.logger.Warn("sign-in failed",
		slog.String("code", code),
		logging.Err(err),
		logging.RequestID(RequestIDFrom(r.Context())),
	)
	http.Redirect(w, r, s.cfg.LandingURL(code), http.StatusFound)
}

// handleLogout clears the session cookie.
// POST /auth/logout
func (s *HTTPServer) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.deps.Store.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleSession reports who is signed in. Tokens never leave the server.
// GET /auth/session
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Store.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo{
		Email:     sess.Identity,
		ExpiresAt: sess.ExpiresAt().UTC(),
	})
}

func (s *HTTPServer) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
