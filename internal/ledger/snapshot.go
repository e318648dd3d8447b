package ledger

import (
	"maps"

	"propshare/pkg/domain"
)

// Snapshot is a deep, comparable copy of a State. Two states that compare
// equal with reflect.DeepEqual hold identical tables and counters.
type Snapshot struct {
	Properties     map[domain.PropertyID]Property                  `json:"properties"`
	Tokens         map[domain.TokenID]ShareToken                   `json:"tokens"`
	Minted         map[domain.PropertyID]uint64                    `json:"minted"`
	Holdings       map[domain.Address]map[domain.PropertyID]uint64 `json:"holdings"`
	KYC            map[domain.Address]bool                         `json:"kyc"`
	Paused         bool                                            `json:"paused"`
	LastPropertyID domain.PropertyID                               `json:"last_property_id"`
	LastTokenID    domain.TokenID                                  `json:"last_token_id"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Properties:     make(map[domain.PropertyID]Property, len(s.properties)),
		Tokens:         make(map[domain.TokenID]ShareToken, len(s.tokens)),
		Minted:         maps.Clone(s.minted),
		Holdings:       make(map[domain.Address]map[domain.PropertyID]uint64, len(s.holdings)),
		KYC:            maps.Clone(s.kyc),
		Paused:         s.paused,
		LastPropertyID: s.lastPropertyID,
		LastTokenID:    s.lastTokenID,
	}
	for id, p := range s.properties {
		snap.Properties[id] = *p
	}
	for id, t := range s.tokens {
		snap.Tokens[id] = *t
	}
	for wallet, byProperty := range s.holdings {
		snap.Holdings[wallet] = maps.Clone(byProperty)
	}
	return snap
}
