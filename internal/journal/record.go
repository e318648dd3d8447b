// Package journal persists ledger events as an ordered, append-only record
// stream and rebuilds ledger state from it.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"propshare/internal/ledger"
	"propshare/pkg/domain"
)

// Record is the durable form of one ledger event. Sequence starts at 1 and
// has no gaps.
type Record struct {
	Sequence    uint64           `json:"sequence"`
	EventID     uuid.UUID        `json:"event_id"`
	Type        ledger.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	Caller      domain.Address   `json:"caller"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     json.RawMessage  `json:"payload"`
}

// Encode wraps an event into a record.
func Encode(seq uint64, caller domain.Address, at time.Time, ev ledger.Event) (Record, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s payload: %w", ev.Type(), err)
	}
	return Record{
		Sequence:    seq,
		EventID:     uuid.New(),
		Type:        ev.Type(),
		AggregateID: ev.AggregateID(),
		Caller:      caller,
		OccurredAt:  at.UTC(),
		Payload:     payload,
	}, nil
}

// Decode restores the ledger event carried by a record.
func Decode(rec Record) (ledger.Event, error) {
	switch rec.Type {
	case ledger.EventPropertyCreated:
		return decodeAs[ledger.PropertyCreated](rec)
	case ledger.EventMinted:
		return decodeAs[ledger.Minted](rec)
	case ledger.EventTransferred:
		return decodeAs[ledger.Transferred](rec)
	case ledger.EventKYCStatusChanged:
		return decodeAs[ledger.KYCStatusChanged](rec)
	case ledger.EventPropertyStatusChanged:
		return decodeAs[ledger.PropertyStatusChanged](rec)
	case ledger.EventPauseChanged:
		return decodeAs[ledger.PauseChanged](rec)
	default:
		return nil, fmt.Errorf("record %d: unknown event type %q", rec.Sequence, rec.Type)
	}
}

func decodeAs[T ledger.Event](rec Record) (ledger.Event, error) {
	var ev T
	if err := json.Unmarshal(rec.Payload, &ev); err != nil {
		return nil, fmt.Errorf("record %d: decode %s: %w", rec.Sequence, rec.Type, err)
	}
	return ev, nil
}
