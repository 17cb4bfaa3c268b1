package enums

// Role is the JWT-carried role of the caller.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role acts on behalf of the shop.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}
