package auth

import (
	"net/http"
	"strings"

	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// QACookieName is the QA scenario override cookie. Its value is a role
// string; it never touches the underlying session.
const QACookieName = "qa"

// Resolver produces the effective identity for a request. Precedence, fixed
// for all requests: impersonation (admin sessions only), then QA override
// (only when QA mode is enabled), then the real session role. Exactly one
// source determines the effective role; they are never merged.
type Resolver struct {
	dir *Directory
	// qaEnabled gates the qa cookie: non-production environments, or an
	// explicit enable flag. In production without the flag the cookie is
	// inert.
	qaEnabled func() bool
}

// NewResolver constructs a Resolver.
func NewResolver(dir *Directory, qaEnabled func() bool) *Resolver {
	if qaEnabled == nil {
		qaEnabled = func() bool { return false }
	}
	return &Resolver{dir: dir, qaEnabled: qaEnabled}
}

// SessionUser reads only the real authentication session. Returns nil for
// anonymous requests.
func (rs *Resolver) SessionUser(r *http.Request) *SessionUser {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		return nil
	}
	payload := sess.Payload()
	return &SessionUser{ID: payload.UserID, Role: rbac.NormalizeRole(payload.Role)}
}

// EffectiveUser resolves the identity guards act on. Returns nil for
// anonymous requests; callers represent those as guests.
func (rs *Resolver) EffectiveUser(r *http.Request) *EffectiveUser {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		return nil
	}
	payload := sess.Payload()
	realRole := rbac.NormalizeRole(payload.Role)

	// Impersonation wins over everything else, and only an admin session may
	// carry it. A stale pointer on a non-admin session is ignored.
	if payload.ImpersonateUserID != "" && realRole == rbac.RoleAdmin {
		if target, err := rs.dir.FindByID(payload.ImpersonateUserID); err == nil {
			return &EffectiveUser{
				ID:                  target.ID,
				Role:                target.Role,
				ImpersonatorAdminID: payload.UserID,
				HasResidentProfile:  target.HasResidentProfile(),
			}
		}
	}

	hasProfile := false
	if u, err := rs.dir.FindByID(payload.UserID); err == nil {
		hasProfile = u.HasResidentProfile()
	}

	if rs.qaEnabled() {
		if role, ok := qaOverrideRole(r); ok {
			return &EffectiveUser{
				ID:                 payload.UserID,
				Role:               role,
				IsQAOverride:       true,
				HasResidentProfile: hasProfile,
			}
		}
	}

	return &EffectiveUser{ID: payload.UserID, Role: realRole, HasResidentProfile: hasProfile}
}

// qaOverrideRole reads the qa cookie. A missing, malformed or unknown value
// reports false: the override fails open to the real session, it never
// escalates by defaulting.
func qaOverrideRole(r *http.Request) (rbac.Role, bool) {
	cookie, err := r.Cookie(QACookieName)
	if err != nil {
		return "", false
	}
	value := strings.ToLower(strings.TrimSpace(cookie.Value))
	if value == "" {
		return "", false
	}
	if role := rbac.Role(value); role.IsValid() && role != rbac.RoleGuest {
		return role, true
	}
	// Legacy aliases are accepted the same way session roles are.
	switch value {
	case "user", "board":
		return rbac.RoleResident, true
	}
	return "", false
}
