package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"propshare/internal/platform/metrics"
	"propshare/pkg/platform/circuit"
	"propshare/pkg/platform/httputil"
	"propshare/pkg/requestcontext"
)

// Limiter is HTTP middleware keyed by the authenticated caller, or by client
// IP for anonymous requests. When the primary store fails repeatedly its
// breaker opens and checks go to an in-memory fallback until it recovers.
type Limiter struct {
	store    Store
	fallback *MemoryStore
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithBreaker(opts ...circuit.Option) Option {
	return func(l *Limiter) {
		l.breaker = circuit.New("ratelimit", opts...)
	}
}

// New returns nil when limit is zero; a nil Limiter passes every request.
func New(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	l := &Limiter{
		store:    store,
		fallback: NewMemoryStore(),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.breaker == nil {
		l.breaker = circuit.New("ratelimit", circuit.WithCooldown(10*time.Second), circuit.WithSuccessThreshold(3))
	}
	if l.store == nil {
		l.store = l.fallback
	}
	return l
}

func (l *Limiter) Handler(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, key := "caller", ""
		if caller := requestcontext.Caller(ctx); !caller.IsZero() {
			key = "caller:" + caller.Hex()
		} else {
			kind, key = "ip", "ip:"+requestcontext.ClientIP(ctx)
		}

		res, degraded := l.check(r, key)
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			l.metrics.IncrementRateLimited(kind)
			w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(l.now())))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "too many requests, retry later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) check(r *http.Request, key string) (Result, bool) {
	if l.store != l.fallback && l.breaker.Allow() {
		res, err := l.store.Allow(r.Context(), key, l.limit, l.window)
		if err == nil {
			if _, change := l.breaker.RecordSuccess(); change.Closed {
				l.logger.Info("rate limit store recovered")
			}
			return res, false
		}
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.logger.Warn("rate limit store unavailable, using in-memory fallback", "error", err)
		} else {
			l.logger.Debug("rate limit store check failed", "error", err)
		}
	}
	res, _ := l.fallback.Allow(r.Context(), key, l.limit, l.window)
	return res, l.store != l.fallback
}

// Run sweeps idle in-memory windows until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.fallback.Sweep(l.window)
		}
	}
}
