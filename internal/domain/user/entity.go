package user

// Role is the access level carried in an access token.
type Role string

const (
	RoleAdmin    Role = "admin"    // Platform operator - manages tax tables
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Prepares payroll runs
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Claims identifies the caller of a request.
type Claims struct {
	UserID    string
	CompanyID string
	Role      Role
}

// HasCompany reports whether the caller acts on behalf of a company.
func (c Claims) HasCompany() bool {
	return c.CompanyID != "" && c.Role != RolePending
}
