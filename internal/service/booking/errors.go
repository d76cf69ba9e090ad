package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

var (
	ErrInvalidRequest    = errors.New("invalid booking request")
	ErrTripNotFound      = errors.New("trip not found")
	ErrTripNotBookable   = errors.New("trip is not open for booking")
	ErrFareNotFound      = errors.New("fare not found")
	ErrFareRouteMismatch = errors.New("fare belongs to another route")
	ErrFareNotValid      = errors.New("fare is not valid on the service date")
	ErrOperatorMismatch  = errors.New("operator does not run the trip's route")
	ErrInvalidSeatCode   = errors.New("invalid seat code")
	ErrSeatAlreadyTaken  = errors.New("seat already taken")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("ticket status change not allowed")
	ErrStorage           = errors.New("storage failure")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error           { return ErrInvalidRequest }
func (e ValidationError) Kind() domain.ErrorKind  { return domain.KindValidation }
func (e ValidationError) Code() string            { return "ValidationError" }
func (e ValidationError) Details() map[string]any { return map[string]any{"field": e.Field} }

type TripNotFoundError struct {
	TripID int64
}

func (e TripNotFoundError) Error() string {
	return fmt.Sprintf("trip not found: %d", e.TripID)
}

func (e TripNotFoundError) Unwrap() error           { return ErrTripNotFound }
func (e TripNotFoundError) Kind() domain.ErrorKind  { return domain.KindNotFound }
func (e TripNotFoundError) Code() string            { return "TripNotFound" }
func (e TripNotFoundError) Details() map[string]any { return map[string]any{"trip_id": e.TripID} }

type TripNotBookableError struct {
	TripID int64
	Status domain.TripStatus
}

func (e TripNotBookableError) Error() string {
	return fmt.Sprintf("trip %d is %s", e.TripID, e.Status)
}

func (e TripNotBookableError) Unwrap() error          { return ErrTripNotBookable }
func (e TripNotBookableError) Kind() domain.ErrorKind { return domain.KindState }
func (e TripNotBookableError) Code() string           { return "TripNotBookable" }

func (e TripNotBookableError) Details() map[string]any {
	return map[string]any{"trip_id": e.TripID, "trip_status": e.Status}
}

type FareNotFoundError struct {
	FareID int64
}

func (e FareNotFoundError) Error() string {
	return fmt.Sprintf("fare not found: %d", e.FareID)
}

func (e FareNotFoundError) Unwrap() error           { return ErrFareNotFound }
func (e FareNotFoundError) Kind() domain.ErrorKind  { return domain.KindNotFound }
func (e FareNotFoundError) Code() string            { return "FareNotFound" }
func (e FareNotFoundError) Details() map[string]any { return map[string]any{"fare_id": e.FareID} }

type FareRouteMismatchError struct {
	FareID      int64
	FareRouteID int64
	TripRouteID int64
}

func (e FareRouteMismatchError) Error() string {
	return fmt.Sprintf("fare %d is for route %d, trip runs route %d", e.FareID, e.FareRouteID, e.TripRouteID)
}

func (e FareRouteMismatchError) Unwrap() error          { return ErrFareRouteMismatch }
func (e FareRouteMismatchError) Kind() domain.ErrorKind { return domain.KindConflict }
func (e FareRouteMismatchError) Code() string           { return "FareRouteMismatch" }

func (e FareRouteMismatchError) Details() map[string]any {
	return map[string]any{
		"fare_id":       e.FareID,
		"fare_route_id": e.FareRouteID,
		"trip_route_id": e.TripRouteID,
	}
}

type FareNotValidError struct {
	FareID      int64
	ServiceDate time.Time
}

func (e FareNotValidError) Error() string {
	return fmt.Sprintf("fare %d is not valid on %s", e.FareID, e.ServiceDate.Format(time.DateOnly))
}

func (e FareNotValidError) Unwrap() error          { return ErrFareNotValid }
func (e FareNotValidError) Kind() domain.ErrorKind { return domain.KindConflict }
func (e FareNotValidError) Code() string           { return "FareNotValid" }

func (e FareNotValidError) Details() map[string]any {
	return map[string]any{"fare_id": e.FareID, "service_date": e.ServiceDate}
}

type OperatorMismatchError struct {
	OperatorID      int64
	RouteOperatorID int64
}

func (e OperatorMismatchError) Error() string {
	return fmt.Sprintf("operator %d does not run this route, operator %d does", e.OperatorID, e.RouteOperatorID)
}

func (e OperatorMismatchError) Unwrap() error          { return ErrOperatorMismatch }
func (e OperatorMismatchError) Kind() domain.ErrorKind { return domain.KindConflict }
func (e OperatorMismatchError) Code() string           { return "OperatorMismatch" }

func (e OperatorMismatchError) Details() map[string]any {
	return map[string]any{"operator_id": e.OperatorID, "route_operator_id": e.RouteOperatorID}
}

// InvalidSeatCodeError names every requested code that is not a seat on the
// trip's bus, as the caller sent it.
type InvalidSeatCodeError struct {
	SeatCodes []string
	Capacity  int
}

func (e InvalidSeatCodeError) Error() string {
	return fmt.Sprintf("invalid seat codes [%s], seats are 1..%d", strings.Join(e.SeatCodes, ", "), e.Capacity)
}

func (e InvalidSeatCodeError) Unwrap() error          { return ErrInvalidSeatCode }
func (e InvalidSeatCodeError) Kind() domain.ErrorKind { return domain.KindValidation }
func (e InvalidSeatCodeError) Code() string           { return "InvalidSeatCode" }

func (e InvalidSeatCodeError) Details() map[string]any {
	return map[string]any{"seat_codes": e.SeatCodes, "capacity": e.Capacity}
}

// SeatAlreadyTakenError names the requested seats held by an active ticket.
type SeatAlreadyTakenError struct {
	TripID    int64
	SeatCodes []string
}

func (e SeatAlreadyTakenError) Error() string {
	return fmt.Sprintf("seats already taken on trip %d: [%s]", e.TripID, strings.Join(e.SeatCodes, ", "))
}

func (e SeatAlreadyTakenError) Unwrap() error          { return ErrSeatAlreadyTaken }
func (e SeatAlreadyTakenError) Kind() domain.ErrorKind { return domain.KindConflict }
func (e SeatAlreadyTakenError) Code() string           { return "SeatAlreadyTaken" }

func (e SeatAlreadyTakenError) Details() map[string]any {
	return map[string]any{"trip_id": e.TripID, "seat_codes": e.SeatCodes}
}

type TicketNotFoundError struct {
	TicketID uuid.UUID
}

func (e TicketNotFoundError) Error() string {
	return fmt.Sprintf("ticket not found: %s", e.TicketID)
}

func (e TicketNotFoundError) Unwrap() error           { return ErrTicketNotFound }
func (e TicketNotFoundError) Kind() domain.ErrorKind  { return domain.KindNotFound }
func (e TicketNotFoundError) Code() string            { return "TicketNotFound" }
func (e TicketNotFoundError) Details() map[string]any { return map[string]any{"ticket_id": e.TicketID} }

type BookingNotFoundError struct {
	BookingID uuid.UUID
}

func (e BookingNotFoundError) Error() string {
	return fmt.Sprintf("booking not found: %s", e.BookingID)
}

func (e BookingNotFoundError) Unwrap() error           { return ErrBookingNotFound }
func (e BookingNotFoundError) Kind() domain.ErrorKind  { return domain.KindNotFound }
func (e BookingNotFoundError) Code() string            { return "BookingNotFound" }
func (e BookingNotFoundError) Details() map[string]any { return map[string]any{"booking_id": e.BookingID} }

type InvalidTransitionError struct {
	TicketID uuid.UUID
	From     domain.TicketStatus
	To       domain.TicketStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("ticket %s cannot go from %s to %s", e.TicketID, e.From, e.To)
}

func (e InvalidTransitionError) Unwrap() error          { return ErrInvalidTransition }
func (e InvalidTransitionError) Kind() domain.ErrorKind { return domain.KindState }
func (e InvalidTransitionError) Code() string           { return "InvalidTransition" }

func (e InvalidTransitionError) Details() map[string]any {
	return map[string]any{"ticket_id": e.TicketID, "from": e.From, "to": e.To}
}

// StorageError wraps a failure of the store that is not a known conflict.
type StorageError struct {
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage: %v", e.Err)
}

func (e StorageError) Unwrap() []error         { return []error{ErrStorage, e.Err} }
func (e StorageError) Kind() domain.ErrorKind  { return domain.KindStorage }
func (e StorageError) Code() string            { return "StorageError" }
func (e StorageError) Details() map[string]any { return nil }
