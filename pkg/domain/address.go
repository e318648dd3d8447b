package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "propshare/pkg/domain-errors"
)

// AddressLength is the byte length of a wallet address.
const AddressLength = 20

// Address identifies a wallet. The zero value is the burn address.
type Address [AddressLength]byte

// ZeroAddress is the burn address; it can never hold KYC status or roles.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address.
// Mixed-case input must carry a valid EIP-55 checksum; single-case input is
// accepted as is.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 2+2*AddressLength {
		return a, dErrors.New(dErrors.CodeInvalidInput, "address must be 0x followed by 40 hex characters")
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return a, dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	body := s[2:]
	if _, err := hex.Decode(a[:], []byte(body)); err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
	}
	if isMixedCase(body) && a.checksumHex() != body {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address checksum mismatch")
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the burn address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	return "0x" + a.checksumHex()
}

// Hex returns the lowercase form, used as a storage and cache key.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) checksumHex() string {
	lower := hex.EncodeToString(a[:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
