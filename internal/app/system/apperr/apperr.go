// internal/app/system/apperr/apperr.go
// Package apperr defines the error kinds shared by the room store, the
// fan-out engine, the plan generator and the REST/socket surfaces.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindGeneration Kind = "generation"
)

// Error is a classified application error. Message is safe to show to the
// user; Err (optional) is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad or missing input.
func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

// NotFound reports an unknown room, invite code or message.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden reports a non-member acting on a room.
func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }

// Generation reports a failed or unusable text-generation call.
func Generation(msg string, cause error) error {
	return &Error{Kind: KindGeneration, Message: msg, Err: cause}
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the user-facing text for err. Unclassified errors
// are reported generically so internals never leak to clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
