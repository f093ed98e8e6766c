package models

// Role is the access level of an authenticated user
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleCashier    Role = "cashier"
)

// Identity is the authenticated user acting on an outlet
type Identity struct {
	UserID  string   `json:"user_id"`
	Name    string   `json:"name"`
	Role    Role     `json:"role"`
	Outlets []string `json:"outlets,omitempty"`
}

// CanAccess reports whether the identity may act on the given outlet
func (i Identity) CanAccess(outletID string) bool {
	if i.Role == RoleSuperAdmin {
		return true
	}
	for _, id := range i.Outlets {
		if id == outletID {
			return true
		}
	}
	return false
}

// HasRole reports whether the identity holds one of the given roles.
// Superadmins pass every check.
func (i Identity) HasRole(roles ...Role) bool {
	if i.Role == RoleSuperAdmin {
		return true
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
