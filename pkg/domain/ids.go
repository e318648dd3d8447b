package domain

import (
	"strconv"

	dErrors "propshare/pkg/domain-errors"
)

// PropertyID identifies a property. IDs are assigned from 1; 0 means none.
type PropertyID uint64

// TokenID identifies a minted share token. IDs are assigned from 1 and are
// unique across all properties; 0 means none.
type TokenID uint64

func (id PropertyID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id TokenID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParsePropertyID parses a decimal property ID from an untrusted source.
func ParsePropertyID(s string) (PropertyID, error) {
	v, err := parseSequentialID(s, "property id")
	return PropertyID(v), err
}

// ParseTokenID parses a decimal token ID from an untrusted source.
func ParseTokenID(s string) (TokenID, error) {
	v, err := parseSequentialID(s, "token id")
	return TokenID(v), err
}

func parseSequentialID(s, label string) (uint64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	// uint64 max has 20 digits; anything longer is noise.
	if len(s) > 20 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, dErrors.New(dErrors.CodeInvalidInput, label+" must be a positive integer")
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" is out of range")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" must be positive")
	}
	return v, nil
}
