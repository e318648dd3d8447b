package store

import (
	"context"
	"fmt"
	"sync"

	"propshare/internal/journal"
	"propshare/pkg/platform/sentinel"
)

// InMemory keeps the journal in a slice. Sequence n lives at index n-1.
type InMemory struct {
	mu      sync.RWMutex
	records []journal.Record
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, records ...journal.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	last := uint64(len(s.records))
	if records[0].Sequence <= last {
		return fmt.Errorf("sequence %d already stored: %w", records[0].Sequence, sentinel.ErrConflict)
	}
	if err := journal.CheckContiguous(last, records); err != nil {
		return fmt.Errorf("%v: %w", err, sentinel.ErrOutOfOrder)
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *InMemory) ListAfter(_ context.Context, after uint64, limit int) ([]journal.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if after >= uint64(len(s.records)) {
		return nil, nil
	}
	end := uint64(len(s.records))
	if limit > 0 && after+uint64(limit) < end {
		end = after + uint64(limit)
	}
	out := make([]journal.Record, end-after)
	copy(out, s.records[after:end])
	return out, nil
}

func (s *InMemory) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}
