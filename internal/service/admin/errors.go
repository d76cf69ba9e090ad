package admin

import (
	"errors"

	"github.com/kirinyoku/tix-bus/internal/domain"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrInUse            = errors.New("record is referenced by other records")
	ErrUnknownReference = errors.New("referenced record does not exist")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBusInactive      = errors.New("bus is not active")
	ErrBusDoubleBooked  = errors.New("bus is already scheduled for another trip at this time")
	ErrTripFinal        = errors.New("trip can only change status")
	ErrTripHasTickets   = errors.New("trip has issued tickets")
)

// Error gives the package sentinels a kind and a payload for the transport
// layer.
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

func notFound(entity string, id int64) error {
	return Error{
		err:     ErrNotFound,
		kind:    domain.KindNotFound,
		code:    entity + "NotFound",
		details: map[string]any{"id": id},
	}
}

func duplicate(entity string) error {
	return Error{err: ErrDuplicate, kind: domain.KindConflict, code: "Duplicate" + entity}
}

func inUse(entity string, id int64) error {
	return Error{
		err:     ErrInUse,
		kind:    domain.KindConflict,
		code:    entity + "InUse",
		details: map[string]any{"id": id},
	}
}

func unknownReference(entity string) error {
	return Error{err: ErrUnknownReference, kind: domain.KindValidation, code: "UnknownReference", details: map[string]any{"entity": entity}}
}

func invalid(field, reason string) error {
	return Error{
		err:     ErrInvalidInput,
		kind:    domain.KindValidation,
		code:    "ValidationError",
		details: map[string]any{"field": field, "reason": reason},
	}
}

func busInactive(busID int64) error {
	return Error{
		err:     ErrBusInactive,
		kind:    domain.KindState,
		code:    "BusInactive",
		details: map[string]any{"bus_id": busID},
	}
}

func busDoubleBooked(busID int64) error {
	return Error{
		err:     ErrBusDoubleBooked,
		kind:    domain.KindConflict,
		code:    "BusDoubleBooked",
		details: map[string]any{"bus_id": busID},
	}
}

func tripFinal(tripID int64, status domain.TripStatus) error {
	return Error{
		err:     ErrTripFinal,
		kind:    domain.KindState,
		code:    "TripFinal",
		details: map[string]any{"trip_id": tripID, "trip_status": status},
	}
}

func tripHasTickets(tripID int64, issued int) error {
	return Error{
		err:     ErrTripHasTickets,
		kind:    domain.KindState,
		code:    "TripHasIssuedTickets",
		details: map[string]any{"trip_id": tripID, "issued_tickets": issued},
	}
}
