package ledger

import (
	"fmt"

	"propshare/pkg/domain"
)

// Apply folds an event into the state. Events produced by Decide always
// apply; an error here means the event stream is inconsistent with the state
// (out-of-order replay or a tampered journal) and the state is left unchanged.
func (s *State) Apply(ev Event) error {
	switch e := ev.(type) {
	case PropertyCreated:
		return s.applyPropertyCreated(e)
	case Minted:
		return s.applyMinted(e)
	case Transferred:
		return s.applyTransferred(e)
	case KYCStatusChanged:
		if e.Wallet.IsZero() {
			return fmt.Errorf("kyc status for zero address")
		}
		if e.Verified {
			s.kyc[e.Wallet] = true
		} else {
			delete(s.kyc, e.Wallet)
		}
		return nil
	case PropertyStatusChanged:
		p, ok := s.properties[e.PropertyID]
		if !ok {
			return fmt.Errorf("status change for unknown property %s", e.PropertyID)
		}
		p.Active = e.Active
		return nil
	case PauseChanged:
		s.paused = e.Paused
		return nil
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (s *State) applyPropertyCreated(e PropertyCreated) error {
	if e.PropertyID != s.lastPropertyID+1 {
		return fmt.Errorf("property id %s out of sequence, expected %d", e.PropertyID, s.lastPropertyID+1)
	}
	if e.TotalShares == 0 {
		return fmt.Errorf("property %s has zero total shares", e.PropertyID)
	}
	s.properties[e.PropertyID] = &Property{
		ID:           e.PropertyID,
		Name:         e.Name,
		Location:     e.Location,
		TotalValue:   e.TotalValue,
		TotalShares:  e.TotalShares,
		Active:       true,
		DocumentHash: e.DocumentHash,
		CreatedAt:    e.CreatedAt,
	}
	s.lastPropertyID = e.PropertyID
	return nil
}

func (s *State) applyMinted(e Minted) error {
	if e.TokenID != s.lastTokenID+1 {
		return fmt.Errorf("token id %s out of sequence, expected %d", e.TokenID, s.lastTokenID+1)
	}
	if e.To.IsZero() || e.Shares == 0 {
		return fmt.Errorf("mint of token %s has zero recipient or amount", e.TokenID)
	}
	p, ok := s.properties[e.PropertyID]
	if !ok {
		return fmt.Errorf("mint of token %s references unknown property %s", e.TokenID, e.PropertyID)
	}
	if e.Shares > p.TotalShares-s.minted[e.PropertyID] {
		return fmt.Errorf("mint of token %s exceeds supply of property %s", e.TokenID, e.PropertyID)
	}
	if !fitsUnderCap(s.holdings[e.To][e.PropertyID], e.Shares, p.MaxHolding()) {
		return fmt.Errorf("mint of token %s exceeds concentration cap", e.TokenID)
	}

	s.tokens[e.TokenID] = &ShareToken{
		ID:          e.TokenID,
		Owner:       e.To,
		PropertyID:  e.PropertyID,
		Shares:      e.Shares,
		MetadataRef: e.MetadataRef,
		MintedAt:    e.MintedAt,
	}
	s.minted[e.PropertyID] += e.Shares
	s.credit(e.To, e.PropertyID, e.TokenID, e.Shares)
	s.lastTokenID = e.TokenID
	return nil
}

func (s *State) applyTransferred(e Transferred) error {
	t, ok := s.tokens[e.TokenID]
	if !ok {
		return fmt.Errorf("transfer of unknown token %s", e.TokenID)
	}
	if t.Owner != e.From {
		return fmt.Errorf("transfer of token %s from non-owner %s", e.TokenID, e.From)
	}
	if e.From == e.To {
		return nil
	}
	if e.IsBurn() {
		s.debit(e.From, t.PropertyID, t.ID, t.Shares)
		s.minted[t.PropertyID] -= t.Shares
		delete(s.tokens, t.ID)
		return nil
	}
	// Holdings are re-checked so a replayed stream cannot breach the cap.
	if !fitsUnderCap(s.holdings[e.To][t.PropertyID], t.Shares, s.properties[t.PropertyID].MaxHolding()) {
		return fmt.Errorf("transfer of token %s exceeds concentration cap", e.TokenID)
	}
	s.debit(e.From, t.PropertyID, t.ID, t.Shares)
	s.credit(e.To, t.PropertyID, t.ID, t.Shares)
	t.Owner = e.To
	return nil
}

func (s *State) credit(wallet domain.Address, pid domain.PropertyID, tid domain.TokenID, shares uint64) {
	if s.holdings[wallet] == nil {
		s.holdings[wallet] = make(map[domain.PropertyID]uint64)
	}
	s.holdings[wallet][pid] += shares
	if s.owned[wallet] == nil {
		s.owned[wallet] = make(map[domain.TokenID]struct{})
	}
	s.owned[wallet][tid] = struct{}{}
}

func (s *State) debit(wallet domain.Address, pid domain.PropertyID, tid domain.TokenID, shares uint64) {
	s.holdings[wallet][pid] -= shares
	if s.holdings[wallet][pid] == 0 {
		delete(s.holdings[wallet], pid)
		if len(s.holdings[wallet]) == 0 {
			delete(s.holdings, wallet)
		}
	}
	delete(s.owned[wallet], tid)
	if len(s.owned[wallet]) == 0 {
		delete(s.owned, wallet)
	}
}
