package handler

import (
	"time"

	"propshare/internal/ledger"
	"propshare/internal/registry/service"
	"propshare/pkg/domain"
)

type PropertyResponse struct {
	ID           domain.PropertyID `json:"id"`
	Name         string            `json:"name"`
	Location     string            `json:"location"`
	TotalValue   uint64            `json:"total_value"`
	TotalShares  uint64            `json:"total_shares"`
	MintedShares uint64            `json:"minted_shares"`
	MaxHolding   uint64            `json:"max_holding"`
	Active       bool              `json:"active"`
	DocumentHash string            `json:"document_hash,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func fromPropertyView(v service.PropertyView) PropertyResponse {
	return PropertyResponse{
		ID:           v.ID,
		Name:         v.Name,
		Location:     v.Location,
		TotalValue:   v.TotalValue,
		TotalShares:  v.TotalShares,
		MintedShares: v.MintedShares,
		MaxHolding:   v.MaxHolding,
		Active:       v.Active,
		DocumentHash: v.DocumentHash,
		CreatedAt:    v.CreatedAt,
	}
}

type PropertyListResponse struct {
	Properties []PropertyResponse `json:"properties"`
}

type TokenResponse struct {
	ID          domain.TokenID    `json:"id"`
	Owner       domain.Address    `json:"owner"`
	PropertyID  domain.PropertyID `json:"property_id"`
	Shares      uint64            `json:"shares"`
	MetadataRef string            `json:"metadata_ref,omitempty"`
	MintedAt    time.Time         `json:"minted_at"`
}

func fromToken(t ledger.ShareToken) TokenResponse {
	return TokenResponse{
		ID:          t.ID,
		Owner:       t.Owner,
		PropertyID:  t.PropertyID,
		Shares:      t.Shares,
		MetadataRef: t.MetadataRef,
		MintedAt:    t.MintedAt,
	}
}

type TokenListResponse struct {
	Wallet domain.Address  `json:"wallet"`
	Tokens []TokenResponse `json:"tokens"`
}

type KYCResponse struct {
	Wallet   domain.Address `json:"wallet"`
	Verified bool           `json:"verified"`
}

// VotingPowerResponse keys the breakdown by decimal property ID.
type VotingPowerResponse struct {
	Wallet      domain.Address    `json:"wallet"`
	VotingPower uint64            `json:"voting_power"`
	PerProperty map[string]uint64 `json:"per_property"`
}

type PropertyVotingPowerResponse struct {
	Wallet      domain.Address    `json:"wallet"`
	PropertyID  domain.PropertyID `json:"property_id"`
	VotingPower uint64            `json:"voting_power"`
}

type PauseResponse struct {
	Paused bool `json:"paused"`
}

type RoleMembersResponse struct {
	Role    string           `json:"role"`
	Members []domain.Address `json:"members"`
}
