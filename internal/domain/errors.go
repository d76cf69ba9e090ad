package domain

import "errors"

// ErrorKind is the stable class of a service error. Transports map kinds,
// never individual errors, to status codes.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NotFound"
	KindValidation   ErrorKind = "ValidationError"
	KindConflict     ErrorKind = "ConflictError"
	KindState        ErrorKind = "StateError"
	KindStorage      ErrorKind = "StorageError"
	KindUnauthorized ErrorKind = "Unauthorized"
	KindForbidden    ErrorKind = "Forbidden"
	KindRateLimited  ErrorKind = "RateLimited"
)

// Error is implemented by every typed service error.
//
// Code names the specific failure (for example SeatAlreadyTaken) and
// Details carries the data a caller needs to act on it.
type Error interface {
	error
	Kind() ErrorKind
	Code() string
	Details() map[string]any
}

// AsError finds the first typed service error in err's chain.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, StorageError when err carries none.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind()
	}
	return KindStorage
}
