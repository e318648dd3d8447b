package journal

import (
	"context"
	"fmt"

	"propshare/internal/ledger"
)

// Store is an append-only record log.
//
//go:generate mockgen -source=journal.go -destination=mocks/mocks.go -package=mocks Store
type Store interface {
	// Append persists records atomically. The first record must carry
	// LastSequence()+1 and the rest must follow without gaps. A reused
	// sequence fails with sentinel.ErrConflict, a gap with
	// sentinel.ErrOutOfOrder; either way nothing is written.
	Append(ctx context.Context, records ...Record) error
	// ListAfter returns up to limit records with Sequence > after, ascending.
	ListAfter(ctx context.Context, after uint64, limit int) ([]Record, error)
	LastSequence(ctx context.Context) (uint64, error)
}

const replayBatch = 500

// Replay applies every stored record to state in sequence order and returns
// the last applied sequence.
func Replay(ctx context.Context, store Store, state *ledger.State) (uint64, error) {
	var last uint64
	for {
		batch, err := store.ListAfter(ctx, last, replayBatch)
		if err != nil {
			return last, fmt.Errorf("list records after %d: %w", last, err)
		}
		if len(batch) == 0 {
			return last, nil
		}
		for _, rec := range batch {
			if rec.Sequence != last+1 {
				return last, fmt.Errorf("journal gap: expected %d, found %d", last+1, rec.Sequence)
			}
			ev, err := Decode(rec)
			if err != nil {
				return last, err
			}
			if err := state.Apply(ev); err != nil {
				return last, fmt.Errorf("apply record %d: %w", rec.Sequence, err)
			}
			last = rec.Sequence
		}
	}
}

// CheckContiguous validates that records continue after last without gaps.
func CheckContiguous(last uint64, records []Record) error {
	for i, rec := range records {
		if rec.Sequence != last+uint64(i)+1 {
			return fmt.Errorf("record %d does not follow %d", rec.Sequence, last+uint64(i))
		}
	}
	return nil
}
