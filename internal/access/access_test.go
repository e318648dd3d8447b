package access

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
)

var (
	admin  = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	minter = domain.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	kyc    = domain.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	nobody = domain.MustParseAddress("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
)

func TestPolicyMatrix(t *testing.T) {
	table := NewRoleTable(admin)
	_, err := table.Grant(admin, RoleMinter, minter)
	require.NoError(t, err)
	_, err = table.Grant(admin, RoleKYCAdmin, kyc)
	require.NoError(t, err)

	tests := []struct {
		caller domain.Address
		op     Operation
		want   bool
	}{
		{admin, OpCreateProperty, true},
		{admin, OpPause, true},
		{minter, OpCreateProperty, true},
		{minter, OpMint, true},
		{minter, OpSetPropertyActive, true},
		{minter, OpSetKYC, false},
		{minter, OpGrantRole, false},
		{kyc, OpSetKYC, true},
		{kyc, OpMint, false},
		{nobody, OpMint, false},
		{nobody, OpSetKYC, false},
		{admin, Operation("selfdestruct"), false},
	}
	for _, tt := range tests {
		t.Run(tt.caller.Hex()[:8]+"/"+string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, table.Allowed(tt.caller, tt.op))
		})
	}
}

func TestGrantRevoke(t *testing.T) {
	table := NewRoleTable(admin)

	t.Run("non-admin cannot grant", func(t *testing.T) {
		_, err := table.Grant(minter, RoleMinter, minter)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.False(t, table.Has(RoleMinter, minter))
	})

	t.Run("grant is idempotent", func(t *testing.T) {
		changed, err := table.Grant(admin, RoleMinter, minter)
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = table.Grant(admin, RoleMinter, minter)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, []domain.Address{admin, minter}, table.Members(RoleMinter))
	})

	t.Run("rejects zero account and unknown role", func(t *testing.T) {
		_, err := table.Grant(admin, RoleMinter, domain.ZeroAddress)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = table.Grant(admin, Role("owner"), minter)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("revoke", func(t *testing.T) {
		changed, err := table.Revoke(admin, RoleMinter, minter)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, table.Allowed(minter, OpMint))
	})

	t.Run("last admin stays", func(t *testing.T) {
		_, err := table.Revoke(admin, RoleDefaultAdmin, admin)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.True(t, table.Has(RoleDefaultAdmin, admin))
	})
}

func TestEmptyTable(t *testing.T) {
	table := NewRoleTable(domain.ZeroAddress)
	for _, r := range Roles {
		assert.Empty(t, table.Members(r))
	}
	assert.False(t, table.Allowed(domain.ZeroAddress, OpMint))
}

func TestConcurrentGrants(t *testing.T) {
	table := NewRoleTable(admin)
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			acct := domain.Address{0: 0x01, 19: n}
			_, _ = table.Grant(admin, RoleKYCAdmin, acct)
			_ = table.Allowed(acct, OpSetKYC)
		}(byte(i + 1))
	}
	wg.Wait()
	assert.Len(t, table.Members(RoleKYCAdmin), 33)
}

func TestSeed(t *testing.T) {
	t.Run("applies assignments", func(t *testing.T) {
		seed, err := DecodeSeed(strings.NewReader(`
roles:
  minter:
    - "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
  kyc_admin:
    - "0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb"
`))
		require.NoError(t, err)

		table := NewRoleTable(admin)
		require.NoError(t, seed.Apply(table))
		assert.True(t, table.Allowed(minter, OpMint))
		assert.True(t, table.Allowed(kyc, OpSetKYC))
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		seed, err := DecodeSeed(strings.NewReader("roles:\n  owner: [\"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359\"]\n"))
		require.NoError(t, err)
		assert.Error(t, seed.Apply(NewRoleTable(admin)))
	})

	t.Run("rejects bad checksum", func(t *testing.T) {
		seed, err := DecodeSeed(strings.NewReader("roles:\n  minter: [\"0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359\"]\n"))
		require.NoError(t, err)
		table := NewRoleTable(admin)
		assert.Error(t, seed.Apply(table))
		assert.False(t, table.Has(RoleMinter, minter))
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := DecodeSeed(strings.NewReader("admins: []\n"))
		assert.Error(t, err)
	})

	t.Run("loads from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		require.NoError(t, os.WriteFile(path, []byte("roles:\n  pauser: [\"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb\"]\n"), 0o600))
		seed, err := LoadSeedFile(path)
		require.NoError(t, err)
		table := NewRoleTable(domain.ZeroAddress)
		require.NoError(t, seed.Apply(table))
		assert.True(t, table.Allowed(nobody, OpPause))
	})
}
