package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/calgate/internal/google"
	"github.com/teemow/calgate/internal/instrumentation"
)

const (
	// DefaultTimeZone is stamped on every created event.
	DefaultTimeZone = "Asia/Kolkata"

	// DefaultCalendarID is the user's primary calendar.
	DefaultCalendarID = "primary"

	// DefaultMaxResults is the page size for upcoming events.
	DefaultMaxResults = 10
)

// Config configures a Client.
type Config struct {
	TimeZone   string
	CalendarID string
	MaxResults int64

	// Endpoint overrides the Calendar API base URL, mainly for tests.
	Endpoint string

	// Timeout bounds each API call. Zero disables it.
	Timeout time.Duration

	// Transport overrides the base HTTP transport.
	Transport http.RoundTripper

	Metrics *instrumentation.Metrics

	// Now overrides the clock used for timeMin.
	Now func() time.Time
}

// Client calls the Google Calendar API with the caller's access token.
// It holds no credentials; every call is made on behalf of one user.
type Client struct {
	location   *time.Location
	calendarID string
	maxResults int64
	endpoint   string
	timeout    time.Duration
	transport  http.RoundTripper
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	tz := cfg.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar time zone %q: %w", tz, err)
	}

	c := &Client{
		location:   loc,
		calendarID: cfg.CalendarID,
		maxResults: cfg.MaxResults,
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		transport:  cfg.Transport,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
	if c.calendarID == "" {
		c.calendarID = DefaultCalendarID
	}
	if c.maxResults <= 0 {
		c.maxResults = DefaultMaxResults
	}
	if c.transport == nil {
		c.transport = google.NewTransport()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// TimeZone returns the IANA name of the zone stamped on created events.
func (c *Client) TimeZone() string {
	return c.location.String()
}

func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	opts := []option.ClientOption{option.WithHTTPClient(google.NewHTTPClient(ts, c.transport, c.timeout))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// ListUpcoming lists the next events from now on, with recurring events
// expanded and ordered by start time.
func (c *Client) ListUpcoming(ctx context.Context, accessToken string) ([]Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList)
	defer span.End()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events, err := svc.Events.List(c.calendarID).
		TimeMin(c.now().Format(time.RFC3339)).
		MaxResults(c.maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	c.record(ctx, instrumentation.OperationList, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	items := make([]Event, 0, len(events.Items))
	for _, event := range events.Items {
		items = append(items, toEvent(event))
	}

	instrumentation.SetSpanSuccess(span)
	return items, nil
}

// Insert creates an event. Start and end are normalized into the configured
// time zone, which is also stamped on the event. Inserts are never retried.
func (c *Client) Insert(ctx context.Context, accessToken string, input EventInput) (*Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationCreate)
	defer span.End()

	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary: input.Summary,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.In(c.location).Format(time.RFC3339),
			TimeZone: c.location.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.In(c.location).Format(time.RFC3339),
			TimeZone: c.location.String(),
		},
	}

	start := time.Now()
	created, err := svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationCreate, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	result := toEvent(created)
	instrumentation.SetSpanSuccess(span)
	return &result, nil
}

func (c *Client) record(ctx context.Context, operation string, err error, duration time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, duration)
}
