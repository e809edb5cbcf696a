package model

import "errors"

// Sentinel errors matching the taxonomy of spec section 7. Callers use
// errors.Is against these; handlers in internal/dispatch and
// internal/webtransport map them to the documented HTTP status.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBusy         = errors.New("resource is busy")
	ErrBadRequest   = errors.New("bad request")
	ErrUnreachable  = errors.New("agent unreachable")
)
