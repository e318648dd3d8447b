package ledger

import (
	"fmt"
	"math"
	"slices"

	"propshare/pkg/domain"
)

// State is the complete registry state. The zero value is not usable; call New.
type State struct {
	properties map[domain.PropertyID]*Property
	tokens     map[domain.TokenID]*ShareToken
	minted     map[domain.PropertyID]uint64
	holdings   map[domain.Address]map[domain.PropertyID]uint64
	owned      map[domain.Address]map[domain.TokenID]struct{}
	kyc        map[domain.Address]bool
	paused     bool

	lastPropertyID domain.PropertyID
	lastTokenID    domain.TokenID
}

// New returns an empty, unpaused ledger.
func New() *State {
	return &State{
		properties: make(map[domain.PropertyID]*Property),
		tokens:     make(map[domain.TokenID]*ShareToken),
		minted:     make(map[domain.PropertyID]uint64),
		holdings:   make(map[domain.Address]map[domain.PropertyID]uint64),
		owned:      make(map[domain.Address]map[domain.TokenID]struct{}),
		kyc:        make(map[domain.Address]bool),
	}
}

// Property returns a copy of the property.
func (s *State) Property(id domain.PropertyID) (Property, bool) {
	p, ok := s.properties[id]
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// Properties returns all properties ordered by ID.
func (s *State) Properties() []Property {
	out := make([]Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Property) int { return cmpID(uint64(a.ID), uint64(b.ID)) })
	return out
}

// Token returns a copy of a live token.
func (s *State) Token(id domain.TokenID) (ShareToken, bool) {
	t, ok := s.tokens[id]
	if !ok {
		return ShareToken{}, false
	}
	return *t, true
}

// TokensOf returns the wallet's live tokens ordered by ID.
func (s *State) TokensOf(wallet domain.Address) []ShareToken {
	ids := s.owned[wallet]
	out := make([]ShareToken, 0, len(ids))
	for id := range ids {
		out = append(out, *s.tokens[id])
	}
	slices.SortFunc(out, func(a, b ShareToken) int { return cmpID(uint64(a.ID), uint64(b.ID)) })
	return out
}

// MintedShares is the number of live shares issued for a property.
func (s *State) MintedShares(id domain.PropertyID) uint64 {
	return s.minted[id]
}

// IsVerified reports the wallet's KYC flag. Unknown wallets are unverified.
func (s *State) IsVerified(wallet domain.Address) bool {
	return s.kyc[wallet]
}

// Paused reports whether mints and transfers are suspended.
func (s *State) Paused() bool {
	return s.paused
}

// PropertyVotingPower is the wallet's holding in one property.
func (s *State) PropertyVotingPower(wallet domain.Address, id domain.PropertyID) uint64 {
	return s.holdings[wallet][id]
}

// VotingPower is the wallet's holding summed across all properties.
// The sum saturates at math.MaxUint64.
func (s *State) VotingPower(wallet domain.Address) uint64 {
	var total uint64
	for _, held := range s.holdings[wallet] {
		if held > math.MaxUint64-total {
			return math.MaxUint64
		}
		total += held
	}
	return total
}

// Holdings returns a copy of the wallet's per-property holdings.
func (s *State) Holdings(wallet domain.Address) map[domain.PropertyID]uint64 {
	out := make(map[domain.PropertyID]uint64, len(s.holdings[wallet]))
	for id, held := range s.holdings[wallet] {
		out[id] = held
	}
	return out
}

// LastPropertyID and LastTokenID expose the sequence counters.
func (s *State) LastPropertyID() domain.PropertyID { return s.lastPropertyID }

func (s *State) LastTokenID() domain.TokenID { return s.lastTokenID }

// CheckInvariants verifies the supply cap, the concentration cap and that the
// holding ledger agrees with token ownership. A non-nil result means the state
// is corrupt (for example a tampered journal was replayed).
func (s *State) CheckInvariants() error {
	minted := make(map[domain.PropertyID]uint64)
	held := make(map[domain.Address]map[domain.PropertyID]uint64)
	for id, t := range s.tokens {
		if _, ok := s.properties[t.PropertyID]; !ok {
			return fmt.Errorf("token %s references unknown property %s", id, t.PropertyID)
		}
		if _, ok := s.owned[t.Owner][id]; !ok {
			return fmt.Errorf("token %s missing from owner index", id)
		}
		minted[t.PropertyID] += t.Shares
		if held[t.Owner] == nil {
			held[t.Owner] = make(map[domain.PropertyID]uint64)
		}
		held[t.Owner][t.PropertyID] += t.Shares
	}

	for id, p := range s.properties {
		if s.minted[id] != minted[id] {
			return fmt.Errorf("property %s minted counter %d != token sum %d", id, s.minted[id], minted[id])
		}
		if minted[id] > p.TotalShares {
			return fmt.Errorf("property %s minted %d exceeds total %d", id, minted[id], p.TotalShares)
		}
	}

	for wallet, byProperty := range s.holdings {
		for id, amount := range byProperty {
			if amount == 0 {
				return fmt.Errorf("wallet %s keeps a zero holding for property %s", wallet, id)
			}
			if amount != held[wallet][id] {
				return fmt.Errorf("wallet %s holding %d != token sum %d for property %s", wallet, amount, held[wallet][id], id)
			}
			if amount > s.properties[id].MaxHolding() {
				return fmt.Errorf("wallet %s holds %d of property %s above cap %d", wallet, amount, id, s.properties[id].MaxHolding())
			}
		}
	}
	for wallet, byProperty := range held {
		for id, amount := range byProperty {
			if s.holdings[wallet][id] != amount {
				return fmt.Errorf("wallet %s token sum %d not reflected in holdings for property %s", wallet, amount, id)
			}
		}
	}
	return nil
}

func cmpID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
