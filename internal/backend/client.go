package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
)

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	// EndpointChat is the unified natural-language endpoint.
	EndpointChat = "/chat"

	// EndpointStoreTokens receives refresh tokens for offline use.
	EndpointStoreTokens = "/auth/store-google-tokens"
)

// Config configures a Client.
type Config struct {
	BaseURL string

	// Timeout bounds each call. Zero disables the client-side timeout.
	Timeout time.Duration

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client talks to the chat backend. Requests are never retried.
type Client struct {
	rc      *resty.Client
	baseURL string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// ChatReply is a 2xx response from the chat endpoint.
// Raw holds the full decoded body so it can be relayed unmodified.
type ChatReply struct {
	Reply string
	Raw   map[string]any
}

// TokenRecord is the payload pushed to the token store endpoint.
type TokenRecord struct {
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.NewWithClient(&http.Client{
		Transport: otelhttp.NewTransport(transport),
	}).
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(logging.NewRestyLogger(logger))
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	return &Client{
		rc:      rc,
		baseURL: base,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat posts payload to the chat endpoint.
//
// A transport failure yields *UnreachableError. A non-2xx status yields
// *RejectedError carrying the backend's own status and message.
func (c *Client) Chat(ctx context.Context, payload map[string]any) (*ChatReply, error) {
	resp, err := c.post(ctx, EndpointChat, payload)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode chat reply: %w", err)
	}

	reply, _ := raw["reply"].(string)
	return &ChatReply{Reply: reply, Raw: raw}, nil
}

// StoreGoogleTokens pushes a user's tokens to the backend token store.
func (c *Client) StoreGoogleTokens(ctx context.Context, record TokenRecord) error {
	_, err := c.post(ctx, EndpointStoreTokens, record)
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (*resty.Response, error) {
	ctx, span := instrumentation.StartBackendSpan(ctx, endpoint)
	defer span.End()

	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	duration := time.Since(start)

	if err != nil {
		c.metrics.RecordBackendRequest(ctx, endpoint, 0, duration)
		uerr := &UnreachableError{URL: c.baseURL, Endpoint: endpoint, Err: err}
		instrumentation.SetSpanError(span, uerr)
		return nil, uerr
	}

	c.metrics.RecordBackendRequest(ctx, endpoint, resp.StatusCode(), duration)

	if !resp.IsSuccess() {
		rerr := newRejectedError(endpoint, resp.StatusCode(), resp.Body())
		instrumentation.SetSpanError(span, rerr)
		c.logger.Debug("backend rejected request",
			logging.Endpoint(endpoint),
			slog.Int(logging.KeyStatus, resp.StatusCode()))
		return nil, rerr
	}

	instrumentation.SetSpanSuccess(span)
	return resp, nil
}
