package rbac

import (
	"errors"
	"fmt"
)

// ErrForbidden indicates an authenticated actor lacks a required capability.
var ErrForbidden = errors.New("forbidden")

// Reason is a stable machine-readable denial code carried in the
// /forbidden?reason=... redirect. The set is closed: the forbidden page maps
// every code to a human label and falls back to a generic message otherwise.
type Reason string

const (
	ReasonAdminOnly   Reason = "admin.only"
	ReasonOfficeOnly  Reason = "office.only"
	ReasonCabinetOnly Reason = "cabinet.only"
	ReasonForbidden   Reason = "forbidden"
)

// Can reports whether role is granted capability by the static table. It is
// a pure function: no I/O, no global mutable state.
func Can(role Role, capability Capability) bool {
	_, ok := capabilities[role][capability]
	return ok
}

// AssertCan returns an ErrForbidden-wrapped error when role lacks capability.
func AssertCan(role Role, capability Capability) error {
	if Can(role, capability) {
		return nil
	}
	return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, role, capability)
}

// ForbiddenReason maps a denied (role, capability) pair to its redirect
// reason code.
func ForbiddenReason(role Role, capability Capability) Reason {
	switch capability {
	case CapAdminAccess:
		return ReasonAdminOnly
	case CapOfficeAccess:
		return ReasonOfficeOnly
	case CapCabinetAccess:
		return ReasonCabinetOnly
	default:
		return ReasonForbidden
	}
}

// ReasonLabel returns the human-readable explanation shown on the forbidden
// page. Unknown or empty codes fall back to a generic message rather than
// erroring: the page must render for any query string.
func ReasonLabel(reason Reason) string {
	switch reason {
	case ReasonAdminOnly:
		return "Раздел доступен только администратору."
	case ReasonOfficeOnly:
		return "Раздел доступен только сотрудникам правления."
	case ReasonCabinetOnly:
		return "Раздел доступен только жителям с личным кабинетом."
	case ReasonForbidden:
		return "У вас нет доступа к этому разделу."
	default:
		return "Доступ ограничен."
	}
}
