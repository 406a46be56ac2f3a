package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for handler layers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes used in API envelopes. The set is closed so clients can switch
// on them.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidRequest     = "invalid_request"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeNotFound           = "not_found"
	CodeOriginMismatch     = "origin_mismatch"
	CodeInternal           = "internal_error"
)

// RespondError maps sentinel errors to envelope responses.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, r, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, ErrValidation):
		Error(w, r, http.StatusBadRequest, CodeInvalidRequest, "validation failed")
	case errors.Is(err, ErrForbidden):
		Error(w, r, http.StatusForbidden, CodeForbidden, "forbidden")
	case errors.Is(err, ErrUnauthorized):
		Error(w, r, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	default:
		Error(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
