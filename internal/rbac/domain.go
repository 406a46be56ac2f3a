// Package rbac holds the static role and capability model of the portal.
//
// The role set and the role-to-capability table are declarative data: no
// capability is ever granted per-user at runtime, and every decision helper
// in this package is a pure function of its inputs.
package rbac

// Role represents a canonical portal role.
type Role string

const (
	// RoleGuest marks an unauthenticated visitor. Guests are produced by the
	// session resolver only; they never appear in the session store.
	RoleGuest Role = "guest"
	// RoleResident is a regular member of the association.
	RoleResident Role = "resident"
	// RoleChairman heads the board.
	RoleChairman Role = "chairman"
	// RoleSecretary keeps the registry and meeting minutes.
	RoleSecretary Role = "secretary"
	// RoleAccountant manages billing and finance.
	RoleAccountant Role = "accountant"
	// RoleAdmin is the technical administrator.
	RoleAdmin Role = "admin"
)

// Capability names a protected action or route class.
type Capability string

const (
	CapCabinetAccess Capability = "cabinet.access"
	CapOfficeAccess  Capability = "office.access"
	CapAdminAccess   Capability = "admin.access"

	CapAppealAssign   Capability = "appeal.assign"
	CapRegistryManage Capability = "registry.manage"
	CapMeetingManage  Capability = "meeting.manage"
	CapFinanceManage  Capability = "finance.manage"
	CapBillingImport  Capability = "billing.import"
	CapContentManage  Capability = "content.manage"
)

// AllRoles lists every canonical role, guests included, in declaration order.
// The access-matrix engine iterates this slice, so the order is fixed.
func AllRoles() []Role {
	return []Role{
		RoleGuest,
		RoleResident,
		RoleChairman,
		RoleSecretary,
		RoleAccountant,
		RoleAdmin,
	}
}

// capabilities maps each role to its granted capability set. Admin
// deliberately has no office.access row: office guards grant admins entry via
// the IsAdminRole union instead of a table row.
var capabilities = map[Role]map[Capability]struct{}{
	RoleResident: {
		CapCabinetAccess: {},
	},
	RoleChairman: {
		CapOfficeAccess:  {},
		CapAppealAssign:  {},
		CapMeetingManage: {},
	},
	RoleSecretary: {
		CapOfficeAccess:   {},
		CapAppealAssign:   {},
		CapRegistryManage: {},
		CapMeetingManage:  {},
	},
	RoleAccountant: {
		CapOfficeAccess:  {},
		CapFinanceManage: {},
		CapBillingImport: {},
	},
	RoleAdmin: {
		CapAdminAccess:   {},
		CapContentManage: {},
	},
}

// IsValid reports whether r is one of the canonical roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleGuest, RoleResident, RoleChairman, RoleSecretary, RoleAccountant, RoleAdmin:
		return true
	}
	return false
}

// IsAdminRole reports whether r is the admin role.
func IsAdminRole(r Role) bool {
	return r == RoleAdmin
}

// IsOfficeRole reports whether r carries office access on its own.
func IsOfficeRole(r Role) bool {
	_, ok := capabilities[r][CapOfficeAccess]
	return ok
}

// IsStaffRole reports whether r belongs to the office/admin family and should
// therefore use the staff login page.
func IsStaffRole(r Role) bool {
	return IsAdminRole(r) || IsOfficeRole(r)
}
