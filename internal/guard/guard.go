// Package guard applies the access control decisions to HTTP routes. Guards
// sit at the top of every route family; data services behind them are only
// reached after a guard has granted access.
package guard

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Login page per route family. Residents and staff land on different forms.
const (
	LoginPath      = "/login"
	StaffLoginPath = "/staff-login"
	ForbiddenPath  = "/forbidden"
)

// Guard builds the per-route-family middlewares.
type Guard struct {
	resolver *auth.Resolver
	logger   *slog.Logger
	onDenied func(role, reason string)
}

// SetDeniedHook installs a callback invoked on every guard denial; the app
// wires the denial counter through it.
func (g *Guard) SetDeniedHook(fn func(role, reason string)) {
	g.onDenied = fn
}

// New constructs a Guard.
func New(resolver *auth.Resolver, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, logger: logger}
}

// RequireCabinet guards the resident cabinet. Staff accounts without a linked
// resident profile are not forbidden: they get the degraded read-only view.
// That is route policy, deliberately kept out of the capability table.
func (g *Guard) RequireCabinet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eff := g.resolver.EffectiveUser(r)
		if eff == nil {
			redirectToLogin(w, r, LoginPath)
			return
		}
		if rbac.Can(eff.Role, rbac.CapCabinetAccess) {
			if !eff.HasResidentProfile {
				r = r.WithContext(shared.ContextWithDegradedCabinet(r.Context()))
			}
			next.ServeHTTP(w, r)
			return
		}
		if rbac.IsStaffRole(eff.Role) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithDegradedCabinet(r.Context())))
			return
		}
		g.redirectForbidden(w, r, eff.Role, rbac.CapCabinetAccess, "cabinet")
	})
}

// RequireOffice guards the board workspace. Admin enters through the
// IsAdminRole union, not an office capability row.
func (g *Guard) RequireOffice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eff := g.resolver.EffectiveUser(r)
		if eff == nil {
			redirectToLogin(w, r, StaffLoginPath)
			return
		}
		if rbac.IsAdminRole(eff.Role) || rbac.Can(eff.Role, rbac.CapOfficeAccess) {
			next.ServeHTTP(w, r)
			return
		}
		g.redirectForbidden(w, r, eff.Role, rbac.CapOfficeAccess, "office")
	})
}

// RequireAdmin guards the admin dashboard.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eff := g.resolver.EffectiveUser(r)
		if eff == nil {
			redirectToLogin(w, r, StaffLoginPath)
			return
		}
		if rbac.Can(eff.Role, rbac.CapAdminAccess) {
			next.ServeHTTP(w, r)
			return
		}
		g.redirectForbidden(w, r, eff.Role, rbac.CapAdminAccess, "admin")
	})
}

// Resolver exposes the underlying resolver for handlers that render the
// effective user.
func (g *Guard) Resolver() *auth.Resolver {
	return g.resolver
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	q := url.Values{}
	q.Set("next", r.URL.Path)
	http.Redirect(w, r, loginPath+"?"+q.Encode(), http.StatusSeeOther)
}

func (g *Guard) redirectForbidden(w http.ResponseWriter, r *http.Request, role rbac.Role, capability rbac.Capability, src string) {
	reason := rbac.ForbiddenReason(role, capability)
	if g.onDenied != nil {
		g.onDenied(string(role), string(reason))
	}
	g.logger.Info("access denied",
		slog.String("path", r.URL.Path),
		slog.String("role", string(role)),
		slog.String("reason", string(reason)),
		slog.String("src", src))
	q := url.Values{}
	q.Set("reason", string(reason))
	q.Set("next", r.URL.Path)
	q.Set("src", src)
	http.Redirect(w, r, ForbiddenPath+"?"+q.Encode(), http.StatusSeeOther)
}
