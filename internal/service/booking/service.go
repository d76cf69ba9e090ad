package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

// maxAttempts is the first attempt plus one retry after a concurrent writer
// won the race for a seat or the transaction was aborted.
const maxAttempts = 2

type Config struct {
	MaxSeatsPerBooking int
}

type Service struct {
	store  Store
	events EventSink
	log    *slog.Logger
	cfg    Config
	now    func() time.Time
}

func New(store Store, events EventSink, log *slog.Logger, cfg Config) *Service {
	if events == nil {
		events = noopSink{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxSeatsPerBooking <= 0 {
		cfg.MaxSeatsPerBooking = 10
	}

	return &Service{
		store:  store,
		events: events,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

type Request struct {
	TripID     int64
	FareID     int64
	AccountID  int64
	OperatorID int64
	Currency   string
	SeatCodes  []string
}

type IssuedTicket struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	SerialNumber int64     `json:"serial_number"`
	SeatCode     string    `json:"seat_code"`
	SeatPrice    int64     `json:"seat_price"`
}

type Result struct {
	BookingID   uuid.UUID      `json:"booking_id"`
	TripID      int64          `json:"trip_id"`
	Tickets     []IssuedTicket `json:"tickets"`
	SeatCodes   []string       `json:"seat_codes"`
	Currency    string         `json:"currency"`
	TotalAmount int64          `json:"total_amount"`
}

// CreateBooking issues one ticket per requested seat under a single booking.
// Either every seat is sold or nothing is written.
//
// Checks run in this order and the first failure is returned:
// TripNotFound, TripNotBookable, FareNotFound, FareRouteMismatch,
// FareNotValid, InvalidSeatCode, SeatAlreadyTaken.
//
// Returns:
//   - *Result: the booking with its issued tickets.
//   - error: a typed error of this package carrying a domain.ErrorKind.
func (s *Service) CreateBooking(ctx context.Context, req Request) (*Result, error) {
	const op = "service.booking.CreateBooking"

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	seats := parseSeatCodes(req.SeatCodes)
	if err := s.checkRequest(req, seats); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	for attempt := 1; ; attempt++ {
		res, err := s.createOnce(ctx, req, seats)
		if err == nil {
			return res, nil
		}

		if !isRaceLoss(err) {
			return nil, fmt.Errorf("%s:%w", op, classify(err))
		}

		if attempt >= maxAttempts {
			return nil, fmt.Errorf("%s:%w", op, s.raceLossError(ctx, req.TripID, seats, err))
		}

		s.log.Warn("booking attempt lost a race, retrying",
			slog.Int64("trip_id", req.TripID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) checkRequest(req Request, seats []seatRequest) error {
	switch {
	case req.AccountID <= 0:
		return ValidationError{Field: "account_id", Reason: "must be positive"}
	case req.OperatorID < 0:
		return ValidationError{Field: "operator_id", Reason: "must not be negative"}
	case req.Currency == "":
		return ValidationError{Field: "currency", Reason: "is required"}
	}

	return checkShape(seats, s.cfg.MaxSeatsPerBooking)
}

func (s *Service) createOnce(ctx context.Context, req Request, seats []seatRequest) (*Result, error) {
	var res *Result

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error {
		trip, err := tx.TripCapacity(ctx, req.TripID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return TripNotFoundError{TripID: req.TripID}
			}
			return err
		}

		if trip.Status != domain.TripScheduled {
			return TripNotBookableError{TripID: trip.TripID, Status: trip.Status}
		}

		fare, err := tx.Fare(ctx, req.FareID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return FareNotFoundError{FareID: req.FareID}
			}
			return err
		}

		if fare.RouteID != trip.RouteID {
			return FareRouteMismatchError{
				FareID:      fare.ID,
				FareRouteID: fare.RouteID,
				TripRouteID: trip.RouteID,
			}
		}

		if !fare.CoversDate(trip.ServiceDate) {
			return FareNotValidError{FareID: fare.ID, ServiceDate: trip.ServiceDate}
		}

		if req.OperatorID != 0 && req.OperatorID != trip.OperatorID {
			return OperatorMismatchError{
				OperatorID:      req.OperatorID,
				RouteOperatorID: trip.OperatorID,
			}
		}

		if invalid := checkRange(seats, trip.Capacity); len(invalid) > 0 {
			return InvalidSeatCodeError{SeatCodes: invalid, Capacity: trip.Capacity}
		}

		codes := seatCodes(seats)

		taken, err := tx.TakenSeats(ctx, trip.TripID, codes)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return SeatAlreadyTakenError{TripID: trip.TripID, SeatCodes: taken}
		}

		b := domain.Booking{
			ID:         uuid.New(),
			AccountID:  req.AccountID,
			OperatorID: trip.OperatorID,
			Currency:   req.Currency,
			Status:     domain.BookingConfirmed,
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}

		tickets := make([]domain.Ticket, len(codes))
		for i, code := range codes {
			tickets[i] = domain.Ticket{
				ID:        uuid.New(),
				BookingID: b.ID,
				TripID:    trip.TripID,
				FareID:    fare.ID,
				AccountID: req.AccountID,
				SeatCode:  code,
				SeatPrice: fare.SeatPrice,
				Status:    domain.TicketIssued,
			}
		}

		issued, err := tx.InsertTickets(ctx, tickets)
		if err != nil {
			return err
		}

		total, err := tx.RecalculateTotal(ctx, b.ID)
		if err != nil {
			return err
		}

		res = &Result{
			BookingID:   b.ID,
			TripID:      trip.TripID,
			Tickets:     make([]IssuedTicket, len(issued)),
			SeatCodes:   codes,
			Currency:    b.Currency,
			TotalAmount: total,
		}
		for i, t := range issued {
			res.Tickets[i] = IssuedTicket{
				TicketID:     t.ID,
				SerialNumber: t.SerialNumber,
				SeatCode:     t.SeatCode,
				SeatPrice:    t.SeatPrice,
			}
		}

		ev := domain.BookingCreated{
			BookingID:   b.ID,
			TripID:      trip.TripID,
			AccountID:   req.AccountID,
			OperatorID:  trip.OperatorID,
			SeatCodes:   codes,
			TotalAmount: total,
			Currency:    b.Currency,
			At:          s.now(),
		}
		after(func(ctx context.Context) {
			s.events.BookingCreated(ctx, ev)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// GetBooking returns a booking with all of its tickets.
func (s *Service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithTickets, error) {
	const op = "service.booking.GetBooking"

	out, err := s.store.Reader().BookingWithTickets(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, BookingNotFoundError{BookingID: bookingID})
		}
		return nil, fmt.Errorf("%s:%w", op, StorageError{Err: err})
	}

	return out, nil
}

// TicketResult is the state of a ticket and its booking after a transition.
type TicketResult struct {
	TicketID       uuid.UUID            `json:"ticket_id"`
	BookingID      uuid.UUID            `json:"booking_id"`
	TripID         int64                `json:"trip_id"`
	SeatCode       string               `json:"seat_code"`
	Status         domain.TicketStatus  `json:"ticket_status"`
	BookingStatus  domain.BookingStatus `json:"booking_status"`
	ReleasedAmount int64                `json:"released_amount"`
}

// RefundTicket moves an Issued or Used ticket to Refunded and frees its seat.
// The booking keeps its original total; the seat price is added to the
// booking's refunded amount.
func (s *Service) RefundTicket(ctx context.Context, ticketID uuid.UUID) (*TicketResult, error) {
	const op = "service.booking.RefundTicket"

	res, err := s.transition(ctx, ticketID, domain.TicketRefunded)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// CancelTicket moves an Issued ticket to Cancelled and frees its seat.
func (s *Service) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*TicketResult, error) {
	const op = "service.booking.CancelTicket"

	res, err := s.transition(ctx, ticketID, domain.TicketCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// UseTicket checks an Issued ticket in. The seat stays occupied.
func (s *Service) UseTicket(ctx context.Context, ticketID uuid.UUID) (*TicketResult, error) {
	const op = "service.booking.UseTicket"

	res, err := s.transition(ctx, ticketID, domain.TicketUsed)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) transition(ctx context.Context, ticketID uuid.UUID, to domain.TicketStatus) (*TicketResult, error) {
	var res *TicketResult

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error {
		t, err := tx.TicketForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return TicketNotFoundError{TicketID: ticketID}
			}
			return err
		}

		if !t.Status.CanTransition(to) {
			return InvalidTransitionError{TicketID: t.ID, From: t.Status, To: to}
		}

		if err := tx.SetTicketStatus(ctx, t.ID, to); err != nil {
			return err
		}

		res = &TicketResult{
			TicketID:  t.ID,
			BookingID: t.BookingID,
			TripID:    t.TripID,
			SeatCode:  t.SeatCode,
			Status:    to,
		}

		released := !to.Active()
		if released {
			status, err := tx.ReleaseFromBooking(ctx, t.BookingID, t.SeatPrice)
			if err != nil {
				return err
			}
			res.BookingStatus = status
			res.ReleasedAmount = t.SeatPrice
		}

		ev := domain.TicketChanged{
			TicketID:      t.ID,
			BookingID:     t.BookingID,
			TripID:        t.TripID,
			SeatCode:      t.SeatCode,
			Status:        to,
			Released:      released,
			Amount:        res.ReleasedAmount,
			BookingStatus: res.BookingStatus,
			At:            s.now(),
		}
		after(func(ctx context.Context) {
			s.events.TicketChanged(ctx, ev)
		})

		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	return res, nil
}

// isRaceLoss reports whether err means another transaction got in first,
// either by taking a requested seat or by forcing a serialization abort.
func isRaceLoss(err error) bool {
	var seat *repository.SeatConflictError
	return errors.As(err, &seat) || errors.Is(err, repository.ErrSerialization)
}

// raceLossError reports the outcome of the last lost race. Seats are
// re-read outside any transaction and only those still held are named;
// an abort that no held seat explains is a StorageError.
func (s *Service) raceLossError(ctx context.Context, tripID int64, seats []seatRequest, err error) error {
	taken, readErr := s.store.Reader().TakenSeats(ctx, tripID, seatCodes(seats))
	if readErr != nil {
		return StorageError{Err: errors.Join(err, readErr)}
	}

	if len(taken) > 0 {
		return SeatAlreadyTakenError{TripID: tripID, SeatCodes: taken}
	}

	s.log.Error("booking aborted twice without a held seat",
		slog.Int64("trip_id", tripID),
		slog.String("error", err.Error()),
	)

	return StorageError{Err: err}
}

// classify keeps typed errors and wraps anything else as StorageError.
func classify(err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return StorageError{Err: err}
}
