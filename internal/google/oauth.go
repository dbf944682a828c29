package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/session"
)

// Config configures a Provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to DefaultScopes.
	Scopes []string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint

	// UserInfoEndpoint overrides the userinfo API base URL, mainly for tests.
	UserInfoEndpoint string

	// Timeout bounds each call to Google. Zero disables it.
	Timeout time.Duration

	// Transport overrides the base HTTP transport.
	Transport http.RoundTripper

	Metrics *instrumentation.Metrics
}

// Provider runs the authorization-code flow against Google.
type Provider struct {
	conf             *oauth2.Config
	userInfoEndpoint string
	timeout          time.Duration
	transport        http.RoundTripper
	metrics          *instrumentation.Metrics
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google redirect url is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport()
	}

	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoEndpoint: cfg.UserInfoEndpoint,
		timeout:          cfg.Timeout,
		transport:        transport,
		metrics:          cfg.Metrics,
	}, nil
}

// AuthCodeURL returns the consent page URL. Offline access and forced consent
// make Google issue a refresh token on every sign-in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// CallbackCode extracts the authorization code from the callback query.
// A provider-reported error, such as denied consent, yields ErrAccessDenied.
func CallbackCode(query url.Values) (string, error) {
	if e := query.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, e)
	}
	code := query.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}

// Exchange swaps code for tokens and resolves the user's verified email.
func (p *Provider) Exchange(ctx context.Context, code string) (*session.Grant, error) {
	httpClient := &http.Client{Transport: p.transport, Timeout: p.timeout}
	ctx = withHTTPClient(ctx, httpClient)

	start := time.Now()
	tok, err := p.conf.Exchange(ctx, code)
	p.recordOperation(ctx, instrumentation.OperationExchange, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	email, err := p.userEmail(ctx, tok)
	if err != nil {
		return nil, err
	}

	grant := &session.Grant{
		Identity: email,
		Tokens: session.TokenBundle{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
		},
	}
	if !tok.Expiry.IsZero() {
		grant.Tokens.ExpiresAt = tok.Expiry.Truncate(time.Second)
	}
	return grant, nil
}

func (p *Provider) userEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth2, instrumentation.OperationUserInfo)
	defer span.End()

	client := NewHTTPClient(oauth2.StaticTokenSource(tok), p.transport, p.timeout)
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.userInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.userInfoEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	start := time.Now()
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	p.recordOperation(ctx, instrumentation.OperationUserInfo, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", fmt.Errorf("%w: failed to fetch user info: %w", ErrExchangeFailed, err)
	}

	if info.Email == "" {
		return "", fmt.Errorf("%w: no email returned", ErrUnverifiedEmail)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return "", fmt.Errorf("%w: %s", ErrUnverifiedEmail, info.Email)
	}

	instrumentation.SetSpanSuccess(span)
	return info.Email, nil
}

func (p *Provider) recordOperation(ctx context.Context, operation string, err error, duration time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	p.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth2, operation, status, duration)
}

// Sign-in failures. None of them creates a session.
var (
	ErrAccessDenied    = errors.New("access denied")
	ErrMissingCode     = errors.New("missing authorization code")
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrExchangeFailed  = errors.New("token exchange failed")
	ErrUnverifiedEmail = errors.New("email not verified")
)

// ErrorCode maps a sign-in failure to the short code put on the landing URL.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrMissingCode):
		return "missing_code"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrUnverifiedEmail):
		return "unverified_email"
	case errors.Is(err, ErrExchangeFailed):
		return "exchange_failed"
	default:
		return "signin_failed"
	}
}
