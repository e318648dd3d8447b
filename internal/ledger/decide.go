package ledger

import (
	"fmt"
	"strings"

	dErrors "propshare/pkg/domain-errors"
)

const (
	maxNameLength        = 256
	maxLocationLength    = 512
	maxDocumentHashBytes = 256
	maxMetadataRefBytes  = 2048
)

// Decide validates cmd against the current state and returns the event that
// applying it would produce. It never mutates the state.
func (s *State) Decide(cmd Command) (Event, error) {
	switch c := cmd.(type) {
	case CreateProperty:
		return s.decideCreateProperty(c)
	case Mint:
		return s.decideMint(c)
	case Transfer:
		return s.decideTransfer(c)
	case SetKYCStatus:
		return s.decideSetKYCStatus(c)
	case SetPropertyActive:
		return s.decideSetPropertyActive(c)
	case SetPaused:
		return PauseChanged{Paused: c.Paused}, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported command %T", cmd))
	}
}

// Execute decides and applies cmd in one step.
func (s *State) Execute(cmd Command) (Event, error) {
	ev, err := s.Decide(cmd)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "decided event failed to apply")
	}
	return ev, nil
}

func (s *State) decideCreateProperty(c CreateProperty) (Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "property name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "property name is too long")
	}
	if len(c.Location) > maxLocationLength {
		return nil, dErrors.New(dErrors.CodeValidation, "property location is too long")
	}
	if len(c.DocumentHash) > maxDocumentHashBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "document hash is too long")
	}
	if c.TotalShares == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidShareAmount, "total shares must be positive")
	}
	if s.lastPropertyID+1 == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "property id space exhausted")
	}
	return PropertyCreated{
		PropertyID:   s.lastPropertyID + 1,
		Name:         name,
		Location:     strings.TrimSpace(c.Location),
		TotalValue:   c.TotalValue,
		TotalShares:  c.TotalShares,
		DocumentHash: c.DocumentHash,
		CreatedAt:    c.At,
	}, nil
}

// decideMint checks, in order: recipient KYC, property active, positive
// amount, supply cap, concentration cap. The first failure wins.
func (s *State) decideMint(c Mint) (Event, error) {
	if s.paused {
		return nil, dErrors.New(dErrors.CodePaused, "registry is paused")
	}
	if !s.kyc[c.To] {
		return nil, dErrors.New(dErrors.CodeRecipientNotVerified, "recipient has not passed KYC")
	}
	p, ok := s.properties[c.PropertyID]
	if !ok || !p.Active {
		return nil, dErrors.New(dErrors.CodePropertyInactive, "property is not active")
	}
	if c.Shares == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidShareAmount, "shares must be positive")
	}
	// minted <= TotalShares always holds, so the subtraction cannot wrap.
	if c.Shares > p.TotalShares-s.minted[c.PropertyID] {
		return nil, dErrors.New(dErrors.CodeSupplyExceeded, "mint would exceed the property's total shares")
	}
	if !fitsUnderCap(s.holdings[c.To][c.PropertyID], c.Shares, p.MaxHolding()) {
		return nil, dErrors.New(dErrors.CodeConcentrationLimitExceeded, "recipient would exceed 10% of the property's shares")
	}
	if len(c.MetadataRef) > maxMetadataRefBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "metadata reference is too long")
	}
	if s.lastTokenID+1 == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token id space exhausted")
	}
	return Minted{
		TokenID:     s.lastTokenID + 1,
		To:          c.To,
		PropertyID:  c.PropertyID,
		Shares:      c.Shares,
		MetadataRef: c.MetadataRef,
		MintedAt:    c.At,
	}, nil
}

// decideTransfer moves a whole token. The recipient check uses the same cap
// as minting, evaluated against the recipient's holding plus the token's
// shares. Burns (zero recipient) skip KYC and cap checks.
func (s *State) decideTransfer(c Transfer) (Event, error) {
	if s.paused {
		return nil, dErrors.New(dErrors.CodePaused, "registry is paused")
	}
	t, ok := s.tokens[c.TokenID]
	if !ok || t.Owner != c.From || c.Caller != c.From {
		return nil, dErrors.New(dErrors.CodeNotOwner, "sender does not own the token")
	}
	ev := Transferred{TokenID: c.TokenID, From: c.From, To: c.To}
	if c.To.IsZero() {
		return ev, nil
	}
	if !s.kyc[c.To] {
		return nil, dErrors.New(dErrors.CodeRecipientNotVerified, "recipient has not passed KYC")
	}
	p := s.properties[t.PropertyID]
	if !fitsUnderCap(s.holdings[c.To][t.PropertyID], t.Shares, p.MaxHolding()) {
		return nil, dErrors.New(dErrors.CodeConcentrationLimitExceeded, "recipient would exceed 10% of the property's shares")
	}
	return ev, nil
}

func (s *State) decideSetKYCStatus(c SetKYCStatus) (Event, error) {
	if c.Wallet.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "the zero address cannot hold KYC status")
	}
	return KYCStatusChanged{Wallet: c.Wallet, Verified: c.Verified}, nil
}

func (s *State) decideSetPropertyActive(c SetPropertyActive) (Event, error) {
	if _, ok := s.properties[c.PropertyID]; !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	return PropertyStatusChanged{PropertyID: c.PropertyID, Active: c.Active}, nil
}

// fitsUnderCap reports held+add <= limit without overflowing.
func fitsUnderCap(held, add, limit uint64) bool {
	if held > limit {
		return false
	}
	return add <= limit-held
}
