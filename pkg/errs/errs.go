// Package errs defines the typed failure used across noisemap.
//
// Every failure that leaves the decode, extract, normalize or predict steps
// is an *Error carrying a Kind. Serving code maps the Kind to a response
// status; it never substitutes a default label or feature value.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindDecode            Kind = "decode"
	KindFeatureExtraction Kind = "feature_extraction"
	KindShapeMismatch     Kind = "shape_mismatch"
	KindUnknownLabel      Kind = "unknown_label"
	KindBundleVersion     Kind = "bundle_version"
	KindInvalidInput      Kind = "invalid_input"
	KindStorage           Kind = "storage"
	KindInternal          Kind = "internal"
)

// HTTPStatus returns the response status a serving boundary should use for
// failures of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindDecode, KindInvalidInput:
		return http.StatusBadRequest
	case KindFeatureExtraction:
		return http.StatusUnprocessableEntity
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. If err already carries an *Error it is returned as is,
// so the innermost classification wins. Wrap(nil) returns nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Kind == kind
}

// Message returns the human readable part of err without the op prefix.
func Message(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Cause != nil {
			return typed.Message + ": " + typed.Cause.Error()
		}
		return typed.Message
	}
	return err.Error()
}
