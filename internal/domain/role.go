package domain

import "github.com/ethereum/go-ethereum/common"

// Role names a capability granted to an address.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleFeeManager    Role = "fee_manager"
	RoleMarketManager Role = "market_manager"
	RolePauser        Role = "pauser"
	RoleOperator      Role = "operator"
)

// AllRoles lists every known role.
var AllRoles = []Role{RoleAdmin, RoleFeeManager, RoleMarketManager, RolePauser, RoleOperator}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// RoleGrant is one membership row.
type RoleGrant struct {
	Role    Role           `json:"role"`
	Account common.Address `json:"account"`
}
