package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindInternal     Kind = "INTERNAL"
)

// Error codes exposed to clients.
const (
	CodeUnauthorized = "AUTH_001"
	CodeInvalidToken = "AUTH_002"
	CodeValidation   = "VAL_001"
	CodeNotFound     = "RES_001"
	CodeConflict     = "RES_002"
	CodeRateLimited  = "RATE_001"
	CodeInternal     = "SYS_001"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// Code overrides the default code for Kind when set.
	Code string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// InvalidToken is an Unauthorized error about a bad or missing token.
func InvalidToken(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Cause: cause, Code: CodeInvalidToken}
}

func Validation(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Cause: cause}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is the message safe to show a client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}

// CodeOf returns the client-facing code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return Code(e.Kind)
	}
	return CodeInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Code(kind Kind) string {
	switch kind {
	case KindValidation:
		return CodeValidation
	case KindUnauthorized:
		return CodeUnauthorized
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindRateLimited:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
