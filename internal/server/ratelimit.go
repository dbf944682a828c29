package server

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRateLimitCleanupInterval is how often idle client limiters are swept.
const DefaultRateLimitCleanupInterval = 5 * time.Minute

// RateLimiterConfig configures the per-client rate limiter.
type RateLimiterConfig struct {
	// Rate is the sustained requests per second per client. Zero disables limiting.
	Rate rate.Limit
	// Burst is the bucket size per client.
	Burst int
	// CleanupInterval defaults to DefaultRateLimitCleanupInterval.
	CleanupInterval time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its background cleanup.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimitCleanupInterval
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	if rl.enabled() {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) enabled() bool {
	return rl.config.Rate > 0
}

// Stop ends the background cleanup. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects clients that exceed their budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiter(key).Allow() {
			rl.config.Logger.Warn("rate limit exceeded",
				slog.String("client", key),
				slog.String("path", r.URL.Path),
			)
			writeRateLimitResponse(w, rl.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if cl, ok := rl.limiters[key]; ok {
		cl.lastAccess = now
		return cl.limiter
	}

	cl := &clientLimiter{
		limiter:    rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		lastAccess: now,
	}
	rl.limiters[key] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rl.cleanup(time.Now()); removed > 0 {
				rl.config.Logger.Debug("rate limiter cleanup",
					slog.Int("removed", removed),
					slog.Int("clients", rl.Len()))
			}
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for more than two cleanup intervals and
// reports how many were dropped.
func (rl *RateLimiter) cleanup(now time.Time) int {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// clientKey is the remote IP without port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse writes 429 with Retry-After set to the time one
// token takes to refill.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := int(math.Ceil(1.0 / float64(r)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(errorBody{Error: "Too many requests. Please try again later."})
}
