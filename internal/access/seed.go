package access

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"propshare/pkg/domain"
)

// Seed is the on-disk role assignment:
//
//	roles:
//	  default_admin:
//	    - "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
//	  minter:
//	    - "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
type Seed struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadSeedFile reads a role seed from path.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roles file: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// DecodeSeed parses YAML and rejects unknown fields.
func DecodeSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed Seed
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode roles file: %w", err)
	}
	return &seed, nil
}

// Apply adds every seeded assignment to the table. Seeding bypasses the
// default_admin check: it is configuration, not a runtime grant.
func (s *Seed) Apply(t *RoleTable) error {
	parsed := make(map[Role][]domain.Address, len(s.Roles))
	for name, addrs := range s.Roles {
		role, err := ParseRole(name)
		if err != nil {
			return err
		}
		for _, raw := range addrs {
			addr, err := domain.ParseAddress(raw)
			if err != nil {
				return fmt.Errorf("role %s: %w", name, err)
			}
			if addr.IsZero() {
				return fmt.Errorf("role %s: zero address", name)
			}
			parsed[role] = append(parsed[role], addr)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for role, addrs := range parsed {
		for _, a := range addrs {
			t.add(role, a)
		}
	}
	return nil
}
