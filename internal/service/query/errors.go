package query

import (
	"errors"

	"github.com/kirinyoku/tix-bus/internal/domain"
)

var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrForbidden      = errors.New("ticket belongs to another account")
)

type Error struct {
	err     error
	kind    domain.ErrorKind
	code    string
	details map[string]any
}

func (e Error) Error() string           { return e.err.Error() }
func (e Error) Unwrap() error           { return e.err }
func (e Error) Kind() domain.ErrorKind  { return e.kind }
func (e Error) Code() string            { return e.code }
func (e Error) Details() map[string]any { return e.details }

func tripNotFound(tripID int64) error {
	return Error{
		err:     ErrTripNotFound,
		kind:    domain.KindNotFound,
		code:    "TripNotFound",
		details: map[string]any{"trip_id": tripID},
	}
}

func ticketNotFound() error {
	return Error{err: ErrTicketNotFound, kind: domain.KindNotFound, code: "TicketNotFound"}
}

func invalidQuery(field, reason string) error {
	return Error{
		err:     ErrInvalidQuery,
		kind:    domain.KindValidation,
		code:    "ValidationError",
		details: map[string]any{"field": field, "reason": reason},
	}
}

func forbidden() error {
	return Error{err: ErrForbidden, kind: domain.KindForbidden, code: "Forbidden"}
}
