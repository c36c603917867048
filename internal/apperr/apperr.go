package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for transport mapping.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindForbidden
	KindRateLimited
	KindInternal
)

// Error is the typed error raised by services. Both the HTTP and the socket
// transport map it to the same wire envelope, so error codes never depend on
// how the request arrived.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// RetryAfterSeconds is set for rate-limited errors only.
	RetryAfterSeconds int
	cause             error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP-equivalent status code for the error.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindRateLimited:
		return 429
	default:
		return 500
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Kind:              KindRateLimited,
		Code:              "RATE_LIMITED",
		Message:           "Too many requests",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Internal wraps a store/backplane/queue failure. The cause is kept for
// logging; the message sent to callers stays sanitized.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "Internal server error", cause: cause}
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
