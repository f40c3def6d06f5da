package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the service boundary.
type Kind int

const (
	// KindValidation is a missing or empty required field.
	KindValidation Kind = iota + 1
	// KindNotFound means no historical data matched the request.
	KindNotFound
	// KindStorage is a connectivity or constraint failure at the durable store.
	KindStorage
)

// Error codes returned to clients alongside the message.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeStorage    = "STORAGE_ERROR"
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is the single error type that services hand to the interface layer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation returns a client error for invalid input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg}
}

// NotFound returns a client error for a lookup that matched nothing.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

// Storage wraps a store failure. The cause is kept in the message on purpose;
// clients see what went wrong at the database.
func Storage(cause error, msg string) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Message: msg, Cause: cause}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
