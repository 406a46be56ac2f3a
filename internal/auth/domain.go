// Package auth implements the portal login flows and the effective-role
// resolution applied to every request.
package auth

import "github.com/snt-portal/snt-portal/internal/rbac"

// User is a portal account from the seeded directory.
type User struct {
	ID   string
	Name string
	Role rbac.Role
	// ResidentProfileID links the account to a plot in the registry. Staff
	// accounts without one still enter the cabinet in degraded read-only mode.
	ResidentProfileID string
}

// HasResidentProfile reports whether the account is linked to a plot.
func (u *User) HasResidentProfile() bool {
	return u != nil && u.ResidentProfileID != ""
}

// SessionUser is the identity read from the real authentication cookie, with
// the role already normalized. QA overrides and impersonation are not applied
// at this level.
type SessionUser struct {
	ID   string
	Role rbac.Role
}

// EffectiveUser is the resolved view consumed by every guard: the identity
// and role actually used for authorization on this request, after
// impersonation and QA override have been applied in precedence order.
type EffectiveUser struct {
	ID   string
	Role rbac.Role
	// IsQAOverride is set when the role came from the qa cookie rather than
	// the session.
	IsQAOverride bool
	// ImpersonatorAdminID attributes an impersonated request back to the
	// admin driving it.
	ImpersonatorAdminID string
	// HasResidentProfile mirrors the underlying account's registry link; it
	// is never affected by a QA role override.
	HasResidentProfile bool
}

// Resident demo scenarios accepted by POST /api/auth/resident-login.
const (
	ScenarioDefault  = "default"
	ScenarioDebtor   = "debtor"
	ScenarioNewOwner = "new-owner"
)
