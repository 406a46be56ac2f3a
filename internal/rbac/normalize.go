package rbac

import "strings"

// roleAliases maps legacy session role strings to canonical roles. Older
// cookies were issued with "user" and "board" before the role model settled.
var roleAliases = map[string]Role{
	"user":  RoleResident,
	"board": RoleResident,
}

// NormalizeRole canonicalizes a raw role string from a session or QA cookie.
// Known aliases map to their canonical role; anything unknown or empty maps
// to resident. Callers must represent unauthenticated visitors as RoleGuest
// before reaching for normalization: an absent session is not an unknown
// role string. The function is idempotent.
func NormalizeRole(raw string) Role {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := roleAliases[trimmed]; ok {
		return alias
	}
	if r := Role(trimmed); r.IsValid() {
		return r
	}
	return RoleResident
}
