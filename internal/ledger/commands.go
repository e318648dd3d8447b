package ledger

import (
	"time"

	"propshare/pkg/domain"
)

// Command is a requested state change. Authorization is decided before a
// command reaches the ledger.
type Command interface {
	Kind() string
}

type CreateProperty struct {
	Name         string
	Location     string
	TotalValue   uint64
	TotalShares  uint64
	DocumentHash string
	At           time.Time
}

type Mint struct {
	To          domain.Address
	PropertyID  domain.PropertyID
	Shares      uint64
	MetadataRef string
	At          time.Time
}

// Transfer moves a token from From to To on behalf of Caller. A zero To burns
// the token.
type Transfer struct {
	Caller  domain.Address
	From    domain.Address
	To      domain.Address
	TokenID domain.TokenID
}

type SetKYCStatus struct {
	Wallet   domain.Address
	Verified bool
}

type SetPropertyActive struct {
	PropertyID domain.PropertyID
	Active     bool
}

type SetPaused struct {
	Paused bool
}

func (CreateProperty) Kind() string    { return "create_property" }
func (Mint) Kind() string              { return "mint" }
func (Transfer) Kind() string          { return "transfer" }
func (SetKYCStatus) Kind() string      { return "set_kyc_status" }
func (SetPropertyActive) Kind() string { return "set_property_active" }
func (SetPaused) Kind() string         { return "set_paused" }
