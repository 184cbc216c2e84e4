package domain

// Role is the closed set of viewer roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleCadet Role = "cadet"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCadet:
		return true
	}
	return false
}

// Identity is one authenticated viewer. CadetID is set only for cadet-role
// identities and drives subject-based visibility.
type Identity struct {
	UserID  int64
	Role    Role
	CadetID *int64
}

// CanSee applies the visibility rule: admin and staff see every event; a
// cadet sees global events plus events whose subject is its own cadet id.
func (i Identity) CanSee(e Event) bool {
	switch i.Role {
	case RoleAdmin, RoleStaff:
		return true
	case RoleCadet:
		if e.SubjectID == nil {
			return true
		}
		return i.CadetID != nil && *e.SubjectID == *i.CadetID
	}
	return false
}

// Staff reports whether the identity has unrestricted visibility.
func (i Identity) Staff() bool {
	return i.Role == RoleAdmin || i.Role == RoleStaff
}
