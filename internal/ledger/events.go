package ledger

import (
	"time"

	"propshare/pkg/domain"
)

// EventType names an event on the wire and in the journal.
type EventType string

const (
	EventPropertyCreated       EventType = "property_created"
	EventMinted                EventType = "minted"
	EventTransferred           EventType = "transferred"
	EventKYCStatusChanged      EventType = "kyc_status_changed"
	EventPropertyStatusChanged EventType = "property_status_changed"
	EventPauseChanged          EventType = "pause_changed"
)

// Event is an immutable fact produced by a successful command. Every
// successful command yields exactly one event.
type Event interface {
	Type() EventType
	// AggregateID keys the event for partitioned transports; events for the
	// same aggregate keep their relative order.
	AggregateID() string
}

type PropertyCreated struct {
	PropertyID   domain.PropertyID `json:"property_id"`
	Name         string            `json:"name"`
	Location     string            `json:"location"`
	TotalValue   uint64            `json:"total_value"`
	TotalShares  uint64            `json:"total_shares"`
	DocumentHash string            `json:"document_hash"`
	CreatedAt    time.Time         `json:"created_at"`
}

type Minted struct {
	TokenID     domain.TokenID    `json:"token_id"`
	To          domain.Address    `json:"to"`
	PropertyID  domain.PropertyID `json:"property_id"`
	Shares      uint64            `json:"shares"`
	MetadataRef string            `json:"metadata_ref"`
	MintedAt    time.Time         `json:"minted_at"`
}

// Transferred records an ownership change. To is the zero address for a burn.
type Transferred struct {
	TokenID domain.TokenID `json:"token_id"`
	From    domain.Address `json:"from"`
	To      domain.Address `json:"to"`
}

type KYCStatusChanged struct {
	Wallet   domain.Address `json:"wallet"`
	Verified bool           `json:"verified"`
}

type PropertyStatusChanged struct {
	PropertyID domain.PropertyID `json:"property_id"`
	Active     bool              `json:"active"`
}

type PauseChanged struct {
	Paused bool `json:"paused"`
}

func (PropertyCreated) Type() EventType       { return EventPropertyCreated }
func (Minted) Type() EventType                { return EventMinted }
func (Transferred) Type() EventType           { return EventTransferred }
func (KYCStatusChanged) Type() EventType      { return EventKYCStatusChanged }
func (PropertyStatusChanged) Type() EventType { return EventPropertyStatusChanged }
func (PauseChanged) Type() EventType          { return EventPauseChanged }

func (e PropertyCreated) AggregateID() string       { return "property:" + e.PropertyID.String() }
func (e Minted) AggregateID() string                { return "token:" + e.TokenID.String() }
func (e Transferred) AggregateID() string           { return "token:" + e.TokenID.String() }
func (e KYCStatusChanged) AggregateID() string      { return "wallet:" + e.Wallet.Hex() }
func (e PropertyStatusChanged) AggregateID() string { return "property:" + e.PropertyID.String() }
func (PauseChanged) AggregateID() string            { return "registry" }

// IsBurn reports whether the transfer destroyed the token.
func (e Transferred) IsBurn() bool {
	return e.To.IsZero()
}
