package access

import (
	"fmt"

	"propshare/pkg/domain"
)

// Role is a named capability granted to addresses.
type Role string

const (
	RoleDefaultAdmin Role = "default_admin"
	RoleMinter       Role = "minter"
	RoleKYCAdmin     Role = "kyc_admin"
	RolePauser       Role = "pauser"
)

// Roles lists every known role.
var Roles = []Role{RoleDefaultAdmin, RoleMinter, RoleKYCAdmin, RolePauser}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Operation is a privileged registry action.
type Operation string

const (
	OpCreateProperty    Operation = "create_property"
	OpMint              Operation = "mint"
	OpSetPropertyActive Operation = "set_property_active"
	OpSetKYC            Operation = "set_kyc"
	OpPause             Operation = "pause"
	OpGrantRole         Operation = "grant_role"
	OpRevokeRole        Operation = "revoke_role"
)

var requiredRole = map[Operation]Role{
	OpCreateProperty:    RoleMinter,
	OpMint:              RoleMinter,
	OpSetPropertyActive: RoleMinter,
	OpSetKYC:            RoleKYCAdmin,
	OpPause:             RolePauser,
	OpGrantRole:         RoleDefaultAdmin,
	OpRevokeRole:        RoleDefaultAdmin,
}

// RequiredRole returns the role an operation needs. Unknown operations need
// a role nobody can hold.
func RequiredRole(op Operation) (Role, bool) {
	r, ok := requiredRole[op]
	return r, ok
}

// Policy answers whether caller may perform op.
type Policy interface {
	Allowed(caller domain.Address, op Operation) bool
}
