package handler

import (
	"strings"

	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
)

// CreatePropertyRequest is the body of POST /properties.
type CreatePropertyRequest struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	TotalValue   uint64 `json:"total_value"`
	TotalShares  uint64 `json:"total_shares"`
	DocumentHash string `json:"document_hash"`
}

func (r *CreatePropertyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Location = strings.TrimSpace(r.Location)
	r.DocumentHash = strings.TrimSpace(r.DocumentHash)
}

// Share amounts are checked by the registry so the error code matches the
// ledger's.
func (r *CreatePropertyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// MintRequest is the body of POST /properties/{propertyID}/mint.
type MintRequest struct {
	To          string `json:"to"`
	Shares      uint64 `json:"shares"`
	MetadataRef string `json:"metadata_ref"`

	parsedTo domain.Address
}

func (r *MintRequest) Normalize() {
	if r == nil {
		return
	}
	r.To = strings.TrimSpace(r.To)
	r.MetadataRef = strings.TrimSpace(r.MetadataRef)
}

func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.To == "" {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	to, err := domain.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

// TransferRequest is the body of POST /tokens/{tokenID}/transfer. The sender is
// always the authenticated caller; the zero address burns the token.
type TransferRequest struct {
	To string `json:"to"`

	parsedTo domain.Address
}

func (r *TransferRequest) Normalize() {
	if r == nil {
		return
	}
	r.To = strings.TrimSpace(r.To)
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.To == "" {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	to, err := domain.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

// KYCRequest is the body of PUT /kyc/{wallet}.
type KYCRequest struct {
	Verified *bool `json:"verified"`
}

func (r *KYCRequest) Validate() error {
	if r == nil || r.Verified == nil {
		return dErrors.New(dErrors.CodeValidation, "verified is required")
	}
	return nil
}

// PropertyStatusRequest is the body of PUT /properties/{propertyID}/status.
type PropertyStatusRequest struct {
	Active *bool `json:"active"`
}

func (r *PropertyStatusRequest) Validate() error {
	if r == nil || r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "active is required")
	}
	return nil
}
