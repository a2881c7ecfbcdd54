// Package entity contains the core business objects of the project.
package entity

// AccountRole represents the primary static role assigned to a user account.
// Dynamic, database-backed roles are modeled separately by Role.
type AccountRole string

const (
	// AccountRoleAdmin indicates a platform administrator.
	AccountRoleAdmin AccountRole = "admin"
	// AccountRoleManager indicates a property manager.
	AccountRoleManager AccountRole = "property_manager"
	// AccountRoleOwner indicates a property owner.
	AccountRoleOwner AccountRole = "owner"
	// AccountRoleTenant indicates a tenant.
	AccountRoleTenant AccountRole = "tenant"
	// AccountRoleMaintenance indicates maintenance staff.
	AccountRoleMaintenance AccountRole = "maintenance"
)

// String returns the string representation of the AccountRole.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid checks if the AccountRole is a valid value.
func (r AccountRole) IsValid() bool {
	switch r {
	case AccountRoleAdmin, AccountRoleManager, AccountRoleOwner, AccountRoleTenant, AccountRoleMaintenance:
		return true
	default:
		return false
	}
}
