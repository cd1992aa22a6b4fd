// Package apperr classifies failures so callers can show a precise message
// without leaking database or driver details.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifies which precondition or layer failed.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindPersistence  Kind = "persistence"
)

// Error carries a kind, a user-visible message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs an Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

func Conflict(message string, err error) *Error { return New(KindConflict, message, err) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message, nil) }

func Forbidden(message string) *Error { return New(KindForbidden, message, nil) }

func Persistence(message string, err error) *Error { return New(KindPersistence, message, err) }

// KindOf reports the kind of err. Unclassified errors count as persistence failures.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindPersistence
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == kind
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to the response status used by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
