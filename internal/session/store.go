package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "calgate_session"

	// DefaultCookieMaxAge keeps the cookie around long enough that a returning
	// user's refresh token can be carried into the next sign-in.
	DefaultCookieMaxAge = 30 * 24 * time.Hour

	issuer = "calgate"
)

var (
	// ErrNoSession means the request carried no session cookie.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession means the cookie failed signature or format checks.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExpiredSession means the session is past its expiry.
	ErrExpiredSession = errors.New("session expired")
)

// Config configures a Store.
type Config struct {
	// Secret signs the session and encrypts the tokens inside it.
	// Must be at least MinSecretLength bytes.
	Secret []byte

	CookieName   string
	CookieMaxAge time.Duration
	Secure       bool

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Store persists sessions in a signed cookie. Token material is encrypted
// before it goes into the cookie so it is never readable by the browser.
type Store struct {
	signingKey []byte
	cipher     *tokenCipher
	cookieName string
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	AccessToken  string `json:"at,omitempty"`
	RefreshToken string `json:"rt,omitempty"`
	TokenExpiry  int64  `json:"tex,omitempty"`
}

// NewStore creates a Store from cfg.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes, got %d", MinSecretLength, len(cfg.Secret))
	}

	signingKey, err := deriveKey(cfg.Secret, infoSigning)
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(cfg.Secret, infoEncryption)
	if err != nil {
		return nil, err
	}
	c, err := newTokenCipher(encKey)
	if err != nil {
		return nil, err
	}

	s := &Store{
		signingKey: signingKey,
		cipher:     c,
		cookieName: cfg.CookieName,
		maxAge:     cfg.CookieMaxAge,
		secure:     cfg.Secure,
		now:        cfg.Now,
	}
	if s.cookieName == "" {
		s.cookieName = DefaultCookieName
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultCookieMaxAge
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Encode serializes sess into a signed token.
func (s *Store) Encode(sess Session) (string, error) {
	at, err := s.cipher.Seal(sess.Tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to seal access token: %w", err)
	}
	rt, err := s.cipher.Seal(sess.Tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to seal refresh token: %w", err)
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.Identity,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt()),
		},
		AccessToken:  at,
		RefreshToken: rt,
		TokenExpiry:  sess.Tokens.ExpiresAtUnix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode parses and validates a token produced by Encode.
// An expired session yields ErrExpiredSession.
func (s *Store) Decode(token string) (*Session, error) {
	return s.decode(token, true)
}

func (s *Store) decode(token string, validateExpiry bool) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	}
	if validateExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredSession
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if c.Subject == "" || c.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing subject or issue time", ErrInvalidSession)
	}

	at, err := s.cipher.Open(c.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	rt, err := s.cipher.Open(c.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	sess := &Session{
		Identity: c.Subject,
		Tokens: TokenBundle{
			AccessToken:  at,
			RefreshToken: rt,
		},
		IssuedAt: c.IssuedAt.Time,
	}
	if c.TokenExpiry > 0 {
		sess.Tokens.ExpiresAt = time.Unix(c.TokenExpiry, 0)
	}

	if validateExpiry && sess.Expired(s.now()) {
		return nil, ErrExpiredSession
	}
	return sess, nil
}

// Issue writes sess to the response as the session cookie.
func (s *Store) Issue(w http.ResponseWriter, sess Session) error {
	value, err := s.Encode(sess)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Resolve returns the valid session attached to r.
func (s *Store) Resolve(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return s.Decode(cookie.Value)
}

// Previous returns the session attached to r even if it has expired, or nil
// when there is none or it cannot be authenticated. It is only meant for
// carrying state into a new sign-in and must not authorize requests.
func (s *Store) Previous(r *http.Request) *Session {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := s.decode(cookie.Value, false)
	if err != nil {
		return nil
	}
	return sess
}

// Clear removes the session cookie.
func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
