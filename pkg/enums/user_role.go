package enums

import "fmt"

// UserRole maps to the role column on users.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleSeller  UserRole = "seller"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleManager,
	UserRoleSeller,
}

// Capability names a gated action. All role checks go through UserRole.Can so
// policy lives in one place.
type Capability string

const (
	CapManageCatalog     Capability = "manage_catalog"
	CapAdjustStock       Capability = "adjust_stock"
	CapConfirmOrders     Capability = "confirm_orders"
	CapCancelSales       Capability = "cancel_sales"
	CapViewReports       Capability = "view_reports"
	CapManageUsers       Capability = "manage_users"
	CapBypassDailyLimit  Capability = "bypass_daily_limit"
	CapViewAuditLog      Capability = "view_audit_log"
)

var roleCapabilities = map[UserRole]map[Capability]bool{
	UserRoleAdmin: {
		CapManageCatalog:    true,
		CapAdjustStock:      true,
		CapConfirmOrders:    true,
		CapCancelSales:      true,
		CapViewReports:      true,
		CapManageUsers:      true,
		CapBypassDailyLimit: true,
		CapViewAuditLog:     true,
	},
	UserRoleManager: {
		CapManageCatalog: true,
		CapAdjustStock:   true,
		CapConfirmOrders: true,
		CapCancelSales:   true,
		CapViewReports:   true,
	},
	UserRoleSeller: {},
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Can reports whether the role is allowed to perform the capability.
func (r UserRole) Can(cap Capability) bool {
	return roleCapabilities[r][cap]
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
