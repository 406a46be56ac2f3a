package auth

import (
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Directory is the seeded account store. The portal's registry is a mock
// data layer by design; the directory is the only part of it the access
// control core depends on.
type Directory struct {
	byID       map[string]*User
	byRole     map[rbac.Role]*User
	byScenario map[string]*User
}

// NewDirectory seeds the demo accounts: one staff account per office/admin
// role and one resident per login scenario. The chairman owns a plot and so
// carries a resident profile; the other staff accounts do not.
func NewDirectory() *Directory {
	users := []*User{
		{ID: "u-admin", Name: "Администратор портала", Role: rbac.RoleAdmin},
		{ID: "u-chairman", Name: "Председатель правления", Role: rbac.RoleChairman, ResidentProfileID: "plot-12"},
		{ID: "u-secretary", Name: "Секретарь правления", Role: rbac.RoleSecretary},
		{ID: "u-accountant", Name: "Бухгалтер", Role: rbac.RoleAccountant},
		{ID: "u-resident", Name: "Житель, участок 101", Role: rbac.RoleResident, ResidentProfileID: "plot-101"},
		{ID: "u-debtor", Name: "Житель с задолженностью", Role: rbac.RoleResident, ResidentProfileID: "plot-17"},
		{ID: "u-newowner", Name: "Новый собственник", Role: rbac.RoleResident, ResidentProfileID: "plot-203"},
	}

	d := &Directory{
		byID:       make(map[string]*User, len(users)),
		byRole:     make(map[rbac.Role]*User),
		byScenario: make(map[string]*User),
	}
	for _, u := range users {
		d.byID[u.ID] = u
	}
	for _, r := range []rbac.Role{rbac.RoleAdmin, rbac.RoleChairman, rbac.RoleSecretary, rbac.RoleAccountant} {
		for _, u := range users {
			if u.Role == r {
				d.byRole[r] = u
				break
			}
		}
	}
	d.byScenario[ScenarioDefault] = d.byID["u-resident"]
	d.byScenario[ScenarioDebtor] = d.byID["u-debtor"]
	d.byScenario[ScenarioNewOwner] = d.byID["u-newowner"]
	return d
}

// FindByID returns the account with the given id.
func (d *Directory) FindByID(id string) (*User, error) {
	if u, ok := d.byID[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

// StaffByRole returns the staff account holding the given role.
func (d *Directory) StaffByRole(role rbac.Role) (*User, error) {
	if u, ok := d.byRole[role]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

// OverdueResidents returns residents with outstanding dues. The demo registry
// marks exactly the debtor-scenario account as overdue.
func (d *Directory) OverdueResidents() []*User {
	if u, ok := d.byScenario[ScenarioDebtor]; ok {
		return []*User{u}
	}
	return nil
}

// ByScenario returns the resident account behind a demo scenario.
func (d *Directory) ByScenario(scenario string) (*User, error) {
	if u, ok := d.byScenario[scenario]; ok {
		return u, nil
	}
	return nil, shared.ErrUnknownScenario
}
