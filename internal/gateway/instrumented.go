package gateway

import (
	"context"
	"log/slog"

	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/outcome"
	"github.com/teemow/calgate/internal/session"
)

// Channels a gateway call can arrive through.
const (
	ChannelHTTP = "http"
	ChannelMCP  = "mcp"
)

type callerKey struct{}

type caller struct {
	channel string
	tool    string
}

// WithCaller records on ctx how the call reached the gateway.
// tool is empty for plain HTTP calls.
func WithCaller(ctx context.Context, channel, tool string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{channel: channel, tool: tool})
}

func callerFrom(ctx context.Context) caller {
	if c, ok := ctx.Value(callerKey{}).(caller); ok {
		return c
	}
	return caller{channel: ChannelHTTP}
}

// Observer receives the telemetry of an instrumented strategy. Nil fields are skipped.
type Observer struct {
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Instrument wraps next so every operation is traced, counted by outcome and
// audit logged.
func Instrument(next Strategy, obs Observer) Strategy {
	if obs.Logger == nil {
		obs.Logger = slog.Default()
	}
	obs.Logger = logging.WithStrategy(obs.Logger, next.Name())
	return &instrumented{next: next, obs: obs}
}

type instrumented struct {
	next Strategy
	obs  Observer
}

func (s *instrumented) Name() string { return s.next.Name() }

func (s *instrumented) Authenticate(sess *session.Session) (Principal, error) {
	p, err := s.next.Authenticate(sess)
	if err != nil {
		kind := outcome.KindOf(err)
		s.obs.Metrics.RecordGatewayOutcome(context.Background(), s.next.Name(), instrumentation.OperationAuthenticate, kind.String(), "")
	}
	return p, err
}

func (s *instrumented) ListEvents(ctx context.Context, p Principal) (*Result, error) {
	return s.observe(ctx, instrumentation.OperationList, p, func(ctx context.Context) (*Result, error) {
		return s.next.ListEvents(ctx, p)
	})
}

func (s *instrumented) CreateEvent(ctx context.Context, p Principal, payload map[string]any) (*Result, error) {
	return s.observe(ctx, instrumentation.OperationCreate, p, func(ctx context.Context) (*Result, error) {
		return s.next.CreateEvent(ctx, p, payload)
	})
}

func (s *instrumented) observe(ctx context.Context, operation string, p Principal, call func(context.Context) (*Result, error)) (*Result, error) {
	name := s.next.Name()
	c := callerFrom(ctx)

	ctx, span := instrumentation.StartGatewaySpan(ctx, name, operation)
	defer span.End()

	invocation := instrumentation.NewInvocation(c.channel, name, operation).
		WithUser(p.Identity()).
		WithTool(c.tool).
		WithSpanContext(ctx)

	result, err := call(ctx)

	kind := outcome.KindOf(err)
	instrumentation.SetSpanOutcome(span, kind.String())
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.obs.Logger.Debug("gateway operation failed",
			logging.Operation(operation),
			logging.Outcome(kind.String()),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	s.obs.Metrics.RecordGatewayOutcome(ctx, name, operation, kind.String(), p.Identity())
	s.obs.Audit.LogInvocation(invocation.Complete(kind.String(), err))

	return result, err
}
