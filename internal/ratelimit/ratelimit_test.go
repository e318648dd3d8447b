package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"propshare/internal/platform/metrics"
	"propshare/pkg/domain"
	"propshare/pkg/platform/circuit"
	"propshare/pkg/requestcontext"
)

const testWindow = time.Minute

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	now   time.Time
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewMemoryStore()
	s.store.now = func() time.Time { return s.now }
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestAllowUpToLimit() {
	for i := range 3 {
		res, err := s.store.Allow(s.ctx, "k", 3, testWindow)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(s.ctx, "k", 3, testWindow)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(s.now.Add(testWindow), res.ResetAt)
}

func (s *MemoryStoreSuite) TestWindowSlides() {
	_, _ = s.store.Allow(s.ctx, "k", 2, testWindow)
	s.now = s.now.Add(30 * time.Second)
	_, _ = s.store.Allow(s.ctx, "k", 2, testWindow)

	res, _ := s.store.Allow(s.ctx, "k", 2, testWindow)
	s.False(res.Allowed)

	// the first hit leaves the window, the second is still inside it
	s.now = s.now.Add(30 * time.Second)
	res, _ = s.store.Allow(s.ctx, "k", 2, testWindow)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *MemoryStoreSuite) TestKeysAreIndependent() {
	_, _ = s.store.Allow(s.ctx, "a", 1, testWindow)
	res, _ := s.store.Allow(s.ctx, "b", 1, testWindow)
	s.True(res.Allowed)
}

func (s *MemoryStoreSuite) TestSweep() {
	_, _ = s.store.Allow(s.ctx, "a", 5, testWindow)
	s.now = s.now.Add(45 * time.Second)
	_, _ = s.store.Allow(s.ctx, "b", 5, testWindow)
	s.now = s.now.Add(30 * time.Second)

	s.store.Sweep(testWindow)
	s.Equal(1, s.store.keys())
}

func TestRetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1, Result{ResetAt: now}.RetryAfter(now))
	assert.Equal(t, 42, Result{ResetAt: now.Add(42 * time.Second)}.RetryAfter(now))
}

type failingStore struct{ calls int }

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	f.calls++
	return Result{}, errors.New("connection refused")
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func request(caller domain.Address, ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/properties", nil)
	ctx := requestcontext.WithClientMetadata(r.Context(), ip, "test")
	if !caller.IsZero() {
		ctx = requestcontext.WithCaller(ctx, caller)
	}
	return r.WithContext(ctx)
}

func TestLimiterRejectsOverLimit(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	l := New(nil, 2, testWindow, WithMetrics(m))
	h := l.Handler(ok)
	alice := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(alice, "10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(alice, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Status"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("caller")))

	// another caller behind the same IP has its own budget
	bob := domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(bob, "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLimiterKeysAnonymousRequestsByIP(t *testing.T) {
	h := New(nil, 1, testWindow).Handler(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(domain.ZeroAddress, "10.0.0.1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(domain.ZeroAddress, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(domain.ZeroAddress, "10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLimiterFallsBackWhenStoreFails(t *testing.T) {
	store := &failingStore{}
	l := New(store, 2, testWindow, WithBreaker(circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour)))
	h := l.Handler(ok)
	alice := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(alice, "10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "degraded", rec.Header().Get("X-RateLimit-Status"))
	}

	// breaker is open: the store is skipped and the fallback still enforces the limit
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(alice, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, store.calls)
}

func TestNilLimiterPassesThrough(t *testing.T) {
	l := New(nil, 0, testWindow)
	require.Nil(t, l)

	rec := httptest.NewRecorder()
	l.Handler(ok).ServeHTTP(rec, request(domain.ZeroAddress, "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, l.Run(context.Background()))
}
