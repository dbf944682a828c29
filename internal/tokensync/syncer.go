package tokensync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calgate/internal/backend"
	"github.com/teemow/calgate/internal/instrumentation"
	"github.com/teemow/calgate/internal/logging"
	"github.com/teemow/calgate/internal/session"
)

// TokenStore persists a user's tokens on the backend.
type TokenStore interface {
	StoreGoogleTokens(ctx context.Context, record backend.TokenRecord) error
}

// Config configures a Syncer.
type Config struct {
	// Timeout bounds a single sync attempt. Zero leaves the attempt
	// unbounded apart from the backend client's own limits.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Syncer pushes freshly issued refresh tokens to the backend in the background.
// A sync never affects the sign-in that triggered it.
type Syncer struct {
	store   TokenStore
	timeout time.Duration
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	wg sync.WaitGroup
}

// New creates a Syncer writing to store.
func New(store TokenStore, cfg Config) *Syncer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:   store,
		timeout: max(cfg.Timeout, 0),
		logger:  logging.WithOperation(logger, "token_sync"),
		metrics: cfg.Metrics,
	}
}

// Dispatch starts a background sync for grant and returns immediately.
// It reports false and does nothing when the grant carries no refresh token.
//
// The sync keeps ctx's values but not its cancellation, so it outlives the
// request that triggered it.
func (s *Syncer) Dispatch(ctx context.Context, grant session.Grant) bool {
	if !grant.IssuedRefreshToken() || grant.Identity == "" {
		return false
	}

	record := backend.TokenRecord{
		UserID:       grant.Identity,
		RefreshToken: grant.Tokens.RefreshToken,
		AccessToken:  grant.Tokens.AccessToken,
		ExpiresAt:    grant.Tokens.ExpiresAtUnix(),
	}

	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sync(detached, record)
	}()
	return true
}

func (s *Syncer) sync(ctx context.Context, record backend.TokenRecord) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := instrumentation.StartSpan(ctx, "tokensync.store")
	defer span.End()

	s.logger.Debug("syncing tokens to backend",
		logging.UserHash(record.UserID),
		slog.String("refresh_token", logging.SanitizeToken(record.RefreshToken)))

	start := time.Now()
	err := s.store.StoreGoogleTokens(ctx, record)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.metrics.RecordTokenSync(ctx, instrumentation.StatusError)
		s.logger.Warn("failed to sync tokens to backend",
			logging.UserHash(record.UserID),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(err))
		return
	}

	instrumentation.SetSpanSuccess(span)
	s.metrics.RecordTokenSync(ctx, instrumentation.StatusSuccess)
	s.logger.Info("synced tokens to backend",
		logging.UserHash(record.UserID),
		slog.Duration(logging.KeyDuration, duration))
}

// Wait blocks until in-flight syncs finish or ctx is done.
func (s *Syncer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
