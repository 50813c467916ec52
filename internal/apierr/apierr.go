// Package apierr defines the error kinds surfaced by the JSON API and their
// mapping onto HTTP status codes.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure.
type Kind int

// Error kinds. The numeric value is reported to clients as "code".
const (
	KindMalformedInput Kind = iota + 1
	KindMissingField
	KindValidation
	KindUnknownCoin
	KindNotFound
	KindUnknownCommand
	KindEngineFailure
)

var kindNames = map[Kind]string{
	KindMalformedInput: "malformed input",
	KindMissingField:   "missing field",
	KindValidation:     "validation error",
	KindUnknownCoin:    "unknown coin",
	KindNotFound:       "not found",
	KindUnknownCommand: "unknown command",
	KindEngineFailure:  "engine failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus returns the status code a response of this kind is sent with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedInput, KindMissingField:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnknownCoin, KindNotFound, KindUnknownCommand:
		return http.StatusNotFound
	case KindEngineFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is an API error carrying its kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil && e.Message == "" {
		return e.Kind.String()
	}
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. This lets callers
// match with errors.Is(err, apierr.ErrValidation).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for use with errors.Is.
var (
	ErrMalformedInput = &Error{Kind: KindMalformedInput}
	ErrMissingField   = &Error{Kind: KindMissingField}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrUnknownCoin    = &Error{Kind: KindUnknownCoin}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrUnknownCommand = &Error{Kind: KindUnknownCommand}
	ErrEngineFailure  = &Error{Kind: KindEngineFailure}
)

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err returns nil.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// MalformedInput reports a body that could not be decoded.
func MalformedInput(format string, args ...interface{}) *Error {
	return New(KindMalformedInput, format, args...)
}

// MissingField reports an absent required field.
func MissingField(name string) *Error {
	return New(KindMissingField, "missing field: %s", name)
}

// Validation reports a field outside its allowed domain.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// UnknownCoin reports an unresolvable ticker or coin id.
func UnknownCoin(ticker string) *Error {
	return New(KindUnknownCoin, "unknown coin: %s", ticker)
}

// NotFound reports a well-formed id the engine does not know.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// UnknownCommand reports an unrecognized path segment.
func UnknownCommand(cmd string) *Error {
	return New(KindUnknownCommand, "unknown command: %s", cmd)
}

// KindOf returns the kind of err. Errors without a kind are engine failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngineFailure
}
