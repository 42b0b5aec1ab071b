package auth

// Role represents a role held by a caller within a tenant
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"  // Platform operator, bypasses tenant checks
	RoleTenantAdmin Role = "tenant_admin" // Full access within one tenant
	RoleAccountant  Role = "accountant"   // Billing read/write within one tenant
	RoleStaff       Role = "staff"        // Read-only billing access
)

// Valid checks if the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleAccountant, RoleStaff:
		return true
	}
	return false
}

// Principal is the resolved caller identity passed into every component.
// TenantID is zero only for super admins acting across tenants.
type Principal struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Roles    []Role `json:"roles"`
}

// HasRole checks if the principal holds a specific role
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the principal holds at least one of the given roles
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the principal bypasses tenant scoping
func (p *Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleSuperAdmin)
}

// CanAccessTenant checks whether the principal may touch the given tenant's
// data. Cross-tenant access fails closed unless the caller is a super admin.
func (p *Principal) CanAccessTenant(tenantID int64) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return p.TenantID == tenantID
}
