package ledger

import (
	"time"

	"propshare/pkg/domain"
)

// ConcentrationDivisor bounds a wallet's holding in one property to
// TotalShares / ConcentrationDivisor (integer division).
const ConcentrationDivisor = 10

// Property is a real-estate asset with a fixed share supply.
type Property struct {
	ID           domain.PropertyID `json:"id"`
	Name         string            `json:"name"`
	Location     string            `json:"location"`
	TotalValue   uint64            `json:"total_value"`
	TotalShares  uint64            `json:"total_shares"`
	Active       bool              `json:"active"`
	DocumentHash string            `json:"document_hash"`
	CreatedAt    time.Time         `json:"created_at"`
}

// MaxHolding is the concentration cap for a single wallet.
func (p Property) MaxHolding() uint64 {
	return p.TotalShares / ConcentrationDivisor
}

// ShareToken is one minted NFT. PropertyID and Shares never change.
type ShareToken struct {
	ID          domain.TokenID    `json:"id"`
	Owner       domain.Address    `json:"owner"`
	PropertyID  domain.PropertyID `json:"property_id"`
	Shares      uint64            `json:"shares"`
	MetadataRef string            `json:"metadata_ref"`
	MintedAt    time.Time         `json:"minted_at"`
}
