// Package relay delivers committed journal records to external sinks.
//
// Every sink gets its own ordered lane: records reach a sink in sequence
// order, a failing sink is retried with capped exponential backoff behind its
// own circuit breaker, and it never holds up the other sinks. Delivery is
// at-least-once; the registry state is never rolled back because of a sink.
package relay

import (
	"context"
	"errors"
	"fmt"

	"propshare/internal/journal"
)

// ErrSinkAhead means a sink has applied records the journal does not hold,
// so it was built from a different journal.
var ErrSinkAhead = errors.New("relay: sink is ahead of the journal")

// Sink receives journal records in sequence order.
//
//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Sink SequencedSink RebuildableSink
type Sink interface {
	Name() string
	Deliver(ctx context.Context, rec journal.Record) error
}

// SequencedSink remembers the last record it applied.
type SequencedSink interface {
	Sink
	LastSequence(ctx context.Context) (uint64, error)
}

// RebuildableSink is a sequenced read model that can be thrown away and
// rebuilt from the journal.
type RebuildableSink interface {
	SequencedSink
	// Origin is the event id of the first record the sink applied, or "".
	Origin(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
}

// CatchUp feeds sink every journal record after its last applied sequence and
// returns how many were delivered. Run it before the dispatcher starts.
//
// A sink that is ahead of the journal, or whose first record differs from the
// journal's, was built from another journal. A RebuildableSink is reset and
// replayed from the start; any other sink fails with ErrSinkAhead.
func CatchUp(ctx context.Context, store journal.Store, sink SequencedSink) (int, error) {
	from, err := sink.LastSequence(ctx)
	if err != nil {
		return 0, err
	}
	if from > 0 {
		stale, err := diverged(ctx, store, sink, from)
		if err != nil {
			return 0, err
		}
		if stale {
			rb, ok := sink.(RebuildableSink)
			if !ok {
				head, _ := store.LastSequence(ctx)
				return 0, fmt.Errorf("%w: %s at %d, journal at %d", ErrSinkAhead, sink.Name(), from, head)
			}
			if err := rb.Reset(ctx); err != nil {
				return 0, fmt.Errorf("reset %s: %w", sink.Name(), err)
			}
			from = 0
		}
	}

	n := 0
	for {
		batch, err := store.ListAfter(ctx, from, 500)
		if err != nil {
			return n, err
		}
		if len(batch) == 0 {
			return n, nil
		}
		for _, rec := range batch {
			if err := sink.Deliver(ctx, rec); err != nil {
				return n, err
			}
			from = rec.Sequence
			n++
		}
	}
}

func diverged(ctx context.Context, store journal.Store, sink SequencedSink, applied uint64) (bool, error) {
	head, err := store.LastSequence(ctx)
	if err != nil {
		return false, err
	}
	if applied > head {
		return true, nil
	}
	rb, ok := sink.(RebuildableSink)
	if !ok {
		return false, nil
	}
	origin, err := rb.Origin(ctx)
	if err != nil || origin == "" {
		return false, err
	}
	first, err := store.ListAfter(ctx, 0, 1)
	if err != nil {
		return false, err
	}
	return len(first) == 0 || first[0].EventID.String() != origin, nil
}
