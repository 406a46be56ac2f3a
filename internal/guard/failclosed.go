package guard

import (
	"net/http"
	"slices"
	"strings"

	"github.com/snt-portal/snt-portal/internal/platform/httpx"
	"github.com/snt-portal/snt-portal/internal/rbac"
)

// RoleClass names the role requirement an API endpoint can declare.
type RoleClass string

const (
	// RoleClassAdmin requires the admin role.
	RoleClassAdmin RoleClass = "admin"
	// RoleClassOffice requires any office role; admin passes through the
	// same union the office route guard applies.
	RoleClassOffice RoleClass = "office"
)

// FailClosedOpts declares the checks an API handler requires.
type FailClosedOpts struct {
	AllowedMethods []string
	RequireAuth    bool
	RequireRole    RoleClass
}

// FailClosed runs the fixed check sequence for an API handler: method
// allow-list, then authentication, then role. It returns true when it wrote
// a denial response, in which case the handler must return immediately.
// Invoke it at the top of every mutating handler.
func (g *Guard) FailClosed(w http.ResponseWriter, r *http.Request, opts FailClosedOpts) bool {
	if len(opts.AllowedMethods) > 0 && !slices.Contains(opts.AllowedMethods, r.Method) {
		w.Header().Set("Allow", strings.Join(opts.AllowedMethods, ", "))
		httpx.Error(w, r, http.StatusMethodNotAllowed, httpx.CodeMethodNotAllowed, "method not allowed")
		return true
	}

	if !opts.RequireAuth && opts.RequireRole == "" {
		return false
	}

	eff := g.resolver.EffectiveUser(r)
	if eff == nil {
		httpx.Error(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return true
	}

	switch opts.RequireRole {
	case "":
	case RoleClassAdmin:
		if !rbac.IsAdminRole(eff.Role) {
			httpx.Error(w, r, http.StatusForbidden, httpx.CodeForbidden, "admin role required")
			return true
		}
	case RoleClassOffice:
		if !rbac.IsStaffRole(eff.Role) {
			httpx.Error(w, r, http.StatusForbidden, httpx.CodeForbidden, "office role required")
			return true
		}
	default:
		// An unknown role class is a programming error; deny rather than
		// letting the request through.
		httpx.Error(w, r, http.StatusForbidden, httpx.CodeForbidden, "forbidden")
		return true
	}

	return false
}
