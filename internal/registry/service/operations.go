package service

import (
	"context"

	"propshare/internal/access"
	"propshare/internal/ledger"
	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
)

// CreatePropertyRequest carries the fields of a new property.
type CreatePropertyRequest struct {
	Name         string
	Location     string
	TotalValue   uint64
	TotalShares  uint64
	DocumentHash string
}

// CreateProperty registers a property with a fixed share supply. It starts active.
func (s *Service) CreateProperty(ctx context.Context, caller domain.Address, req CreatePropertyRequest) (ledger.Property, error) {
	ev, err := s.execute(ctx, caller, "create_property", access.OpCreateProperty, ledger.CreateProperty{
		Name:         req.Name,
		Location:     req.Location,
		TotalValue:   req.TotalValue,
		TotalShares:  req.TotalShares,
		DocumentHash: req.DocumentHash,
		At:           s.now(),
	})
	if err != nil {
		return ledger.Property{}, err
	}
	created := ev.(ledger.PropertyCreated)
	s.logAudit(ctx, "property_created",
		"caller", caller.String(),
		"property_id", created.PropertyID.String(),
		"total_shares", created.TotalShares,
	)
	s.metrics.SetMintedShares(created.PropertyID.String(), 0)
	p, _ := s.Property(created.PropertyID)
	return p.Property, nil
}

// Mint issues a new token of shares in a property to a KYC-verified wallet.
func (s *Service) Mint(ctx context.Context, caller, to domain.Address, propertyID domain.PropertyID, shares uint64, metadataRef string) (ledger.ShareToken, error) {
	ev, err := s.execute(ctx, caller, "mint", access.OpMint, ledger.Mint{
		To:          to,
		PropertyID:  propertyID,
		Shares:      shares,
		MetadataRef: metadataRef,
		At:          s.now(),
	})
	if err != nil {
		return ledger.ShareToken{}, err
	}
	minted := ev.(ledger.Minted)
	s.logAudit(ctx, "shares_minted",
		"caller", caller.String(),
		"to", to.String(),
		"property_id", propertyID.String(),
		"token_id", minted.TokenID.String(),
		"shares", shares,
	)
	s.metrics.SetMintedShares(propertyID.String(), s.MintedShares(propertyID))
	return ledger.ShareToken{
		ID:          minted.TokenID,
		Owner:       minted.To,
		PropertyID:  minted.PropertyID,
		Shares:      minted.Shares,
		MetadataRef: minted.MetadataRef,
		MintedAt:    minted.MintedAt,
	}, nil
}

// Transfer moves a whole token from the caller to another wallet. Sending to
// the zero address burns it.
func (s *Service) Transfer(ctx context.Context, caller, from, to domain.Address, tokenID domain.TokenID) error {
	// The property is looked up before the move so a burn can refresh its gauge.
	tok, known := s.Token(tokenID)
	_, err := s.execute(ctx, caller, "transfer", "", ledger.Transfer{
		Caller:  caller,
		From:    from,
		To:      to,
		TokenID: tokenID,
	})
	if err != nil {
		return err
	}
	event := "shares_transferred"
	if to.IsZero() {
		event = "shares_burned"
	}
	s.logAudit(ctx, event,
		"caller", caller.String(),
		"from", from.String(),
		"to", to.String(),
		"token_id", tokenID.String(),
	)
	if known && to.IsZero() {
		s.metrics.SetMintedShares(tok.PropertyID.String(), s.MintedShares(tok.PropertyID))
	}
	return nil
}

// SetKYCStatus records the identity oracle's verdict for a wallet.
func (s *Service) SetKYCStatus(ctx context.Context, caller, wallet domain.Address, verified bool) error {
	if _, err := s.execute(ctx, caller, "set_kyc_status", access.OpSetKYC, ledger.SetKYCStatus{Wallet: wallet, Verified: verified}); err != nil {
		return err
	}
	s.logAudit(ctx, "kyc_status_changed",
		"caller", caller.String(),
		"wallet", wallet.String(),
		"verified", verified,
	)
	return nil
}

// SetPropertyActive opens or closes a property for minting.
func (s *Service) SetPropertyActive(ctx context.Context, caller domain.Address, propertyID domain.PropertyID, active bool) error {
	if _, err := s.execute(ctx, caller, "set_property_active", access.OpSetPropertyActive, ledger.SetPropertyActive{PropertyID: propertyID, Active: active}); err != nil {
		return err
	}
	s.logAudit(ctx, "property_status_changed",
		"caller", caller.String(),
		"property_id", propertyID.String(),
		"active", active,
	)
	return nil
}

// Pause suspends mints and transfers.
func (s *Service) Pause(ctx context.Context, caller domain.Address) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause resumes mints and transfers.
func (s *Service) Unpause(ctx context.Context, caller domain.Address) error {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller domain.Address, paused bool) error {
	name := "unpause"
	if paused {
		name = "pause"
	}
	if _, err := s.execute(ctx, caller, name, access.OpPause, ledger.SetPaused{Paused: paused}); err != nil {
		return err
	}
	s.logAudit(ctx, "registry_"+name+"d", "caller", caller.String())
	return nil
}

// GrantRole gives account a role. Role changes are configuration and are not
// journaled.
func (s *Service) GrantRole(ctx context.Context, caller domain.Address, role access.Role, account domain.Address) error {
	changed, err := s.roles.Grant(caller, role, account)
	if err != nil {
		s.logRejected(ctx, "grant_role", caller, err)
		return err
	}
	if changed {
		s.logAudit(ctx, "role_granted",
			"caller", caller.String(),
			"role", string(role),
			"account", account.String(),
		)
	}
	return nil
}

// RevokeRole removes a role from account.
func (s *Service) RevokeRole(ctx context.Context, caller domain.Address, role access.Role, account domain.Address) error {
	changed, err := s.roles.Revoke(caller, role, account)
	if err != nil {
		s.logRejected(ctx, "revoke_role", caller, err)
		return err
	}
	if changed {
		s.logAudit(ctx, "role_revoked",
			"caller", caller.String(),
			"role", string(role),
			"account", account.String(),
		)
	}
	return nil
}

// RoleMembers lists the holders of a role.
func (s *Service) RoleMembers(role access.Role) ([]domain.Address, error) {
	if _, err := access.ParseRole(string(role)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown role")
	}
	return s.roles.Members(role), nil
}
