package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers. Transports map kinds to their own
// status codes.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a simple failure with a fixed kind and message.
type Error struct {
	kind    Kind
	message string
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string { return e.message }

// Kind reports the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound     = NewError(KindNotFound, "tenant not found")
	ErrSessionNotFound    = NewError(KindNotFound, "session not found")
	ErrSuspensionNotFound = NewError(KindNotFound, "suspension request not found")

	ErrTenantSuspended = NewError(KindForbidden, "tenant is suspended")
	ErrQuotaExhausted  = NewError(KindForbidden, "monthly session quota reached")

	ErrSessionTerminated      = NewError(KindConflict, "session already terminated")
	ErrActiveSuspensionExists = NewError(KindConflict, "an active suspension request already exists")
	ErrStaleState             = NewError(KindConflict, "record changed concurrently")

	ErrExtensionCapExceeded = NewError(KindValidation, "cumulative extension exceeds maximum")

	ErrUnauthorized = NewError(KindUnauthorized, "missing or invalid credentials")
)

// ValidationError is returned when an input field is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Kind reports KindValidation.
func (e *ValidationError) Kind() Kind { return KindValidation }

// SlugConflictError is returned when a tenant slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// Kind reports KindConflict.
func (e *SlugConflictError) Kind() Kind { return KindConflict }

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Action  Action
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %q is not valid from state %q", e.Action, e.Current)
}

// Kind reports KindConflict.
func (e *TransitionError) Kind() Kind { return KindConflict }

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}
