package google

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// NewTransport returns the base transport for Google API calls.
// HTTP/2 is disabled to avoid protocol errors seen with the Google APIs.
func NewTransport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	return otelhttp.NewTransport(base)
}

// NewHTTPClient returns an HTTP client that authenticates with ts on top of base.
// A nil base uses NewTransport. A zero timeout disables the client timeout.
func NewHTTPClient(ts oauth2.TokenSource, base http.RoundTripper, timeout time.Duration) *http.Client {
	if base == nil {
		base = NewTransport()
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
		Timeout:   timeout,
	}
}

// withHTTPClient makes the oauth2 package use client for token endpoint calls.
func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
