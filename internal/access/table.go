package access

import (
	"slices"
	"strings"
	"sync"

	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
)

// RoleTable is an in-memory role assignment table safe for concurrent use.
type RoleTable struct {
	mu      sync.RWMutex
	members map[Role]map[domain.Address]struct{}
}

// NewRoleTable grants every role to admin, the way a freshly deployed
// registry hands all roles to its deployer. A zero admin yields an empty table.
func NewRoleTable(admin domain.Address) *RoleTable {
	t := &RoleTable{members: make(map[Role]map[domain.Address]struct{})}
	if !admin.IsZero() {
		for _, r := range Roles {
			t.add(r, admin)
		}
	}
	return t
}

// Allowed implements Policy.
func (t *RoleTable) Allowed(caller domain.Address, op Operation) bool {
	role, ok := requiredRole[op]
	if !ok {
		return false
	}
	return t.Has(role, caller)
}

// Has reports whether account holds role.
func (t *RoleTable) Has(role Role, account domain.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[role][account]
	return ok
}

// Members returns the holders of role ordered by hex address.
func (t *RoleTable) Members(role Role) []domain.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Address, 0, len(t.members[role]))
	for a := range t.members[role] {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Address) int { return strings.Compare(a.Hex(), b.Hex()) })
	return out
}

// Grant gives role to account. The caller must hold default_admin.
// Granting an already held role is a no-op and reports changed=false.
func (t *RoleTable) Grant(caller domain.Address, role Role, account domain.Address) (bool, error) {
	if err := t.checkAdmin(caller, role, account); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.members[role][account]; ok {
		return false, nil
	}
	t.add(role, account)
	return true, nil
}

// Revoke removes role from account. The caller must hold default_admin.
// The last default_admin cannot be revoked, otherwise the table could never
// be administered again.
func (t *RoleTable) Revoke(caller domain.Address, role Role, account domain.Address) (bool, error) {
	if err := t.checkAdmin(caller, role, account); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.members[role][account]; !ok {
		return false, nil
	}
	if role == RoleDefaultAdmin && len(t.members[role]) == 1 {
		return false, dErrors.New(dErrors.CodeConflict, "cannot revoke the last default_admin")
	}
	delete(t.members[role], account)
	return true, nil
}

func (t *RoleTable) checkAdmin(caller domain.Address, role Role, account domain.Address) error {
	if !t.Has(RoleDefaultAdmin, caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a default_admin")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "unknown role")
	}
	if account.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "cannot assign roles to the zero address")
	}
	return nil
}

// add assumes the write lock is held or the table is not yet shared.
func (t *RoleTable) add(role Role, account domain.Address) {
	if t.members[role] == nil {
		t.members[role] = make(map[domain.Address]struct{})
	}
	t.members[role][account] = struct{}{}
}
