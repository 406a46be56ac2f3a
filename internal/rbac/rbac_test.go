package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snt-portal/snt-portal/internal/rbac"
)

func TestNormalizeRoleAliases(t *testing.T) {
	cases := map[string]rbac.Role{
		"user":       rbac.RoleResident,
		"board":      rbac.RoleResident,
		"resident":   rbac.RoleResident,
		"chairman":   rbac.RoleChairman,
		"secretary":  rbac.RoleSecretary,
		"accountant": rbac.RoleAccountant,
		"admin":      rbac.RoleAdmin,
		"ADMIN":      rbac.RoleAdmin,
		"  admin  ":  rbac.RoleAdmin,
		"":           rbac.RoleResident,
		"unknown":    rbac.RoleResident,
	}
	for raw, want := range cases {
		assert.Equal(t, want, rbac.NormalizeRole(raw), "raw=%q", raw)
	}
}

func TestNormalizeRoleIdempotent(t *testing.T) {
	inputs := []string{"user", "board", "resident", "chairman", "secretary", "accountant", "admin", "", "garbage", "GUEST"}
	for _, raw := range inputs {
		once := rbac.NormalizeRole(raw)
		twice := rbac.NormalizeRole(string(once))
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", raw)
	}
}

func TestCanTruthTable(t *testing.T) {
	type row struct {
		role rbac.Role
		cap  rbac.Capability
		want bool
	}
	rows := []row{
		{rbac.RoleGuest, rbac.CapCabinetAccess, false},
		{rbac.RoleGuest, rbac.CapOfficeAccess, false},
		{rbac.RoleGuest, rbac.CapAdminAccess, false},

		{rbac.RoleResident, rbac.CapCabinetAccess, true},
		{rbac.RoleResident, rbac.CapOfficeAccess, false},
		{rbac.RoleResident, rbac.CapAdminAccess, false},
		{rbac.RoleResident, rbac.CapAppealAssign, false},

		{rbac.RoleChairman, rbac.CapOfficeAccess, true},
		{rbac.RoleChairman, rbac.CapAppealAssign, true},
		{rbac.RoleChairman, rbac.CapMeetingManage, true},
		{rbac.RoleChairman, rbac.CapFinanceManage, false},
		{rbac.RoleChairman, rbac.CapAdminAccess, false},

		{rbac.RoleSecretary, rbac.CapOfficeAccess, true},
		{rbac.RoleSecretary, rbac.CapRegistryManage, true},
		{rbac.RoleSecretary, rbac.CapBillingImport, false},

		{rbac.RoleAccountant, rbac.CapOfficeAccess, true},
		{rbac.RoleAccountant, rbac.CapFinanceManage, true},
		{rbac.RoleAccountant, rbac.CapBillingImport, true},
		{rbac.RoleAccountant, rbac.CapAppealAssign, false},

		{rbac.RoleAdmin, rbac.CapAdminAccess, true},
		{rbac.RoleAdmin, rbac.CapContentManage, true},
		// Admin entry into the office is granted by the guard union, not by a
		// table row.
		{rbac.RoleAdmin, rbac.CapOfficeAccess, false},
	}
	for _, r := range rows {
		got := rbac.Can(r.role, r.cap)
		assert.Equal(t, r.want, got, "Can(%s, %s)", r.role, r.cap)
		// Determinism: same inputs, same answer.
		assert.Equal(t, got, rbac.Can(r.role, r.cap), "Can(%s, %s) repeat", r.role, r.cap)
	}
}

func TestAssertCan(t *testing.T) {
	assert.NoError(t, rbac.AssertCan(rbac.RoleResident, rbac.CapCabinetAccess))
	err := rbac.AssertCan(rbac.RoleResident, rbac.CapOfficeAccess)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestForbiddenReason(t *testing.T) {
	assert.Equal(t, rbac.ReasonAdminOnly, rbac.ForbiddenReason(rbac.RoleChairman, rbac.CapAdminAccess))
	assert.Equal(t, rbac.ReasonOfficeOnly, rbac.ForbiddenReason(rbac.RoleResident, rbac.CapOfficeAccess))
	assert.Equal(t, rbac.ReasonCabinetOnly, rbac.ForbiddenReason(rbac.RoleGuest, rbac.CapCabinetAccess))
	assert.Equal(t, rbac.ReasonForbidden, rbac.ForbiddenReason(rbac.RoleResident, rbac.CapAppealAssign))
}

func TestReasonLabelFallsBack(t *testing.T) {
	assert.NotEmpty(t, rbac.ReasonLabel(rbac.ReasonOfficeOnly))
	assert.Equal(t, "Доступ ограничен.", rbac.ReasonLabel(rbac.Reason("")))
	assert.Equal(t, "Доступ ограничен.", rbac.ReasonLabel(rbac.Reason("nonsense")))
}

func TestStaffRoleFamilies(t *testing.T) {
	assert.True(t, rbac.IsOfficeRole(rbac.RoleChairman))
	assert.True(t, rbac.IsOfficeRole(rbac.RoleSecretary))
	assert.True(t, rbac.IsOfficeRole(rbac.RoleAccountant))
	assert.False(t, rbac.IsOfficeRole(rbac.RoleAdmin))
	assert.False(t, rbac.IsOfficeRole(rbac.RoleResident))

	assert.True(t, rbac.IsStaffRole(rbac.RoleAdmin))
	assert.True(t, rbac.IsStaffRole(rbac.RoleAccountant))
	assert.False(t, rbac.IsStaffRole(rbac.RoleResident))
	assert.False(t, rbac.IsStaffRole(rbac.RoleGuest))
}
