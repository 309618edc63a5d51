package domain

import "time"

// Role user role inside a tenant
type Role string

const (
	// RoleSuperAdmin platform administrator
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin daycare administrator
	RoleAdmin Role = "admin_garderie"
	// RoleEducator daycare educator
	RoleEducator Role = "educateur"
	// RoleParent parent of one or more children
	RoleParent Role = "parent"
)

// Valid report whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEducator, RoleParent:
		return true
	}
	return false
}

// IsStaff every known role except parent
func (r Role) IsStaff() bool {
	return r.Valid() && r != RoleParent
}

// IsParent role is parent
func (r Role) IsParent() bool {
	return r == RoleParent
}

// Principal authenticated caller resolved from the credential
type Principal struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
}

// User directory entry
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Role      Role      `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName first and last name
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Group daycare group of children
type Group struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}
