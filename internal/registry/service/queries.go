package service

import (
	"propshare/internal/ledger"
	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
)

// PropertyView is a property with its issuance counters.
type PropertyView struct {
	ledger.Property
	MintedShares uint64 `json:"minted_shares"`
	MaxHolding   uint64 `json:"max_holding"`
}

// VotingPowerView is a wallet's voting power with the per-property breakdown.
type VotingPowerView struct {
	Wallet      domain.Address               `json:"wallet"`
	Total       uint64                       `json:"total"`
	PerProperty map[domain.PropertyID]uint64 `json:"per_property"`
}

func (s *Service) Property(id domain.PropertyID) (PropertyView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Property(id)
	if !ok {
		return PropertyView{}, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	return s.viewLocked(p), nil
}

func (s *Service) Properties() []PropertyView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props := s.state.Properties()
	out := make([]PropertyView, 0, len(props))
	for _, p := range props {
		out = append(out, s.viewLocked(p))
	}
	return out
}

func (s *Service) viewLocked(p ledger.Property) PropertyView {
	return PropertyView{
		Property:     p,
		MintedShares: s.state.MintedShares(p.ID),
		MaxHolding:   p.MaxHolding(),
	}
}

// Token returns a live token. Burned tokens are gone.
func (s *Service) Token(id domain.TokenID) (ledger.ShareToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token(id)
}

// GetToken is Token with a coded not-found error.
func (s *Service) GetToken(id domain.TokenID) (ledger.ShareToken, error) {
	t, ok := s.Token(id)
	if !ok {
		return ledger.ShareToken{}, dErrors.New(dErrors.CodeNotFound, "token not found")
	}
	return t, nil
}

func (s *Service) TokensOf(wallet domain.Address) []ledger.ShareToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TokensOf(wallet)
}

func (s *Service) MintedShares(id domain.PropertyID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.MintedShares(id)
}

func (s *Service) IsVerified(wallet domain.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsVerified(wallet)
}

func (s *Service) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Paused()
}

// VotingPower is the wallet's total shares across all properties.
func (s *Service) VotingPower(wallet domain.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.VotingPower(wallet)
}

func (s *Service) PropertyVotingPower(wallet domain.Address, id domain.PropertyID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PropertyVotingPower(wallet, id)
}

// VotingPowerBreakdown reads total and per-property power in one consistent view.
func (s *Service) VotingPowerBreakdown(wallet domain.Address) VotingPowerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return VotingPowerView{
		Wallet:      wallet,
		Total:       s.state.VotingPower(wallet),
		PerProperty: s.state.Holdings(wallet),
	}
}

// Snapshot deep-copies the ledger.
func (s *Service) Snapshot() ledger.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Snapshot()
}

// CheckInvariants verifies the live ledger.
func (s *Service) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CheckInvariants()
}

// MaxHolding is the concentration cap of a property.
func (s *Service) MaxHolding(id domain.PropertyID) (uint64, error) {
	p, err := s.Property(id)
	if err != nil {
		return 0, err
	}
	return p.MaxHolding, nil
}
