// Package qa implements the access-matrix verification engine and the full
// QA report run. The engine is an external client of the portal: it logs in
// through the real endpoints and walks every route over HTTP, comparing the
// observed outcome against a static expectation table.
package qa

import "github.com/snt-portal/snt-portal/internal/rbac"

// Outcome classifies the observed result of visiting a route.
type Outcome string

const (
	OutcomeAllow         Outcome = "ALLOW"
	OutcomeLoginRequired Outcome = "LOGIN_REQUIRED"
	OutcomeForbidden     Outcome = "FORBIDDEN"
	OutcomeServerError   Outcome = "SERVER_ERROR"
)

// DefaultRoutes is the full route list the access matrix walks, in the fixed
// order results are reported in.
func DefaultRoutes() []string {
	return []string{
		"/",
		"/login",
		"/staff-login",
		"/forbidden",
		"/cabinet",
		"/cabinet/appeals",
		"/cabinet/billing",
		"/office",
		"/office/appeals",
		"/office/registry",
		"/admin",
		"/admin/settings",
	}
}

// CriticalRoutes is the subset the dead-end and smoke scans cover.
func CriticalRoutes() []string {
	return []string{
		"/",
		"/login",
		"/staff-login",
		"/forbidden",
		"/cabinet",
		"/office",
		"/admin",
	}
}

// routeFamily returns the guard family prefix a route belongs to, or "".
func routeFamily(route string) string {
	switch {
	case route == "/cabinet" || hasPathPrefix(route, "/cabinet"):
		return "/cabinet"
	case route == "/office" || hasPathPrefix(route, "/office"):
		return "/office"
	case route == "/admin" || hasPathPrefix(route, "/admin"):
		return "/admin"
	}
	return ""
}

func hasPathPrefix(route, prefix string) bool {
	return len(route) > len(prefix) && route[:len(prefix)] == prefix && route[len(prefix)] == '/'
}

// Expected is the executable specification of intended guard behavior. It is
// consumed only by the verification engine; runtime guards never read it.
func Expected(role rbac.Role, route string) Outcome {
	family := routeFamily(route)
	if family == "" {
		// Public pages are reachable by everyone.
		return OutcomeAllow
	}
	if role == rbac.RoleGuest {
		return OutcomeLoginRequired
	}
	switch family {
	case "/cabinet":
		// Residents own the cabinet; staff enter in degraded read-only mode.
		return OutcomeAllow
	case "/office":
		if rbac.IsAdminRole(role) || rbac.IsOfficeRole(role) {
			return OutcomeAllow
		}
		return OutcomeForbidden
	case "/admin":
		if rbac.IsAdminRole(role) {
			return OutcomeAllow
		}
		return OutcomeForbidden
	}
	return OutcomeForbidden
}
