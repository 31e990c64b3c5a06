package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for transport-level mapping.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidState        Kind = "invalid_state"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindInvalidDistance     Kind = "invalid_distance"
	KindPaymentSession      Kind = "payment_session_invalid"
	KindSubmissionTimeout   Kind = "submission_timeout"
	KindSubmissionFailed    Kind = "submission_failed"
)

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundError creates a not-found error for an entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError creates a conflict error.
func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewInvalidStateError creates an error for a disallowed state transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewProviderUnavailableError wraps a failure reaching an external provider.
func NewProviderUnavailableError(provider string, err error) *Error {
	return &Error{Kind: KindProviderUnavailable, Message: fmt.Sprintf("%s provider unavailable", provider), Err: err}
}

// NewInvalidDistanceError rejects a negative or non-finite trip distance.
func NewInvalidDistanceError(distance float64) *Error {
	return &Error{Kind: KindInvalidDistance, Message: fmt.Sprintf("invalid trip distance: %v", distance)}
}

// NewPaymentSessionError reports an unusable checkout session from the payment provider.
func NewPaymentSessionError(err error) *Error {
	return &Error{Kind: KindPaymentSession, Message: "payment checkout session unavailable", Err: err}
}

// NewSubmissionTimeoutError reports a relay submission that exceeded its deadline.
func NewSubmissionTimeoutError(err error) *Error {
	return &Error{Kind: KindSubmissionTimeout, Message: "booking submission timed out", Err: err}
}

// NewSubmissionFailedError reports a non-success response from the form relay.
func NewSubmissionFailedError(msg string) *Error {
	return &Error{Kind: KindSubmissionFailed, Message: msg}
}

// KindOf returns the kind of err if it wraps an *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
