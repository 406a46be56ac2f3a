package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownScenario indicates an unrecognized resident demo scenario.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrImpersonationDenied occurs when a non-admin session starts impersonation.
	ErrImpersonationDenied = errors.New("impersonation requires admin session")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
