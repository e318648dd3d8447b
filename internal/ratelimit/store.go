// Package ratelimit bounds how often a caller may hit the mutating routes.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest hit leaves the
// window, never less than one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	return max(secs, 1)
}

// Store counts hits per key over a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// MemoryStore is a process-local sliding window. It is the default store and
// the fallback while Redis is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hits := prune(s.buckets[key], now.Add(-window))
	if len(hits) >= limit {
		s.buckets[key] = hits
		reset := now.Add(window)
		if len(hits) > 0 {
			reset = hits[0].Add(window)
		}
		return Result{Limit: limit, ResetAt: reset}, nil
	}

	hits = append(hits, now)
	s.buckets[key] = hits
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}

// Sweep drops keys with no hits inside window.
func (s *MemoryStore) Sweep(window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-window)
	for key, hits := range s.buckets {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = hits
		}
	}
}

func (s *MemoryStore) keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// prune drops timestamps at or before cutoff; hits are kept in arrival order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
