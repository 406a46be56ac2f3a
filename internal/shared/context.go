package shared

import "context"

type sessionContextKey struct{}
type degradedContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithDegradedCabinet marks the request as served in read-only cabinet
// mode: a staff account without a linked resident profile is let in, but the
// page renders a degraded banner instead of resident data.
func ContextWithDegradedCabinet(ctx context.Context) context.Context {
	return context.WithValue(ctx, degradedContextKey{}, true)
}

// DegradedCabinetFromContext reports whether the degraded read-only cabinet
// flag is set on the request.
func DegradedCabinetFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(degradedContextKey{}).(bool)
	return v
}
