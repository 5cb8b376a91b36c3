// Package titanerr defines the typed error kinds that flow out of the core
// Titan-AAS components. Pure transformations and storage/cache code return
// *Error values so that an (external) HTTP adapter can map them to status
// codes and the {"messages":[...]} envelope without parsing error strings.
package titanerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the core surfaces.
type Kind string

const (
	NotFound           Kind = "NotFound"
	Conflict           Kind = "Conflict"
	BadRequest         Kind = "BadRequest"
	PreconditionFailed Kind = "PreconditionFailed"
	Unauthorized       Kind = "Unauthorized"
	Forbidden          Kind = "Forbidden"
	TooManyRequests    Kind = "TooManyRequests"
	Gone               Kind = "Gone"
	Unavailable        Kind = "Unavailable"
	Internal           Kind = "Internal"
)

// Error is a typed, wrappable domain error. Code is the short machine token
// (e.g. "Submodel.NotFound", "ETag.Mismatch") used in the user-visible
// message envelope; Kind drives status-code mapping at the HTTP boundary.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error with no wrapped cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap constructs an Error carrying an underlying cause.
func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; otherwise it returns Internal, the safe default for unanticipated
// failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return Internal
}

// Is reports whether err's kind equals k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
