package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository/postgres"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

// Tx is the set of statements the engine runs inside one transaction.
// *postgres.BookingRepo implements it.
type Tx interface {
	TripCapacity(ctx context.Context, tripID int64) (*domain.TripCapacity, error)
	Fare(ctx context.Context, fareID int64) (*domain.Fare, error)
	TakenSeats(ctx context.Context, tripID int64, seatCodes []string) ([]string, error)
	InsertBooking(ctx context.Context, b *domain.Booking) error
	InsertTickets(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error)
	RecalculateTotal(ctx context.Context, bookingID uuid.UUID) (int64, error)
	TicketForUpdate(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error)
	SetTicketStatus(ctx context.Context, ticketID uuid.UUID, status domain.TicketStatus) error
	ReleaseFromBooking(ctx context.Context, bookingID uuid.UUID, amount int64) (domain.BookingStatus, error)
	BookingWithTickets(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithTickets, error)
}

// Store runs engine work atomically. Hooks passed to after run only once
// the transaction committed.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error) error
	Reader() Tx
}

// EventSink receives committed changes. Implementations must not block for
// long and must not fail the caller.
type EventSink interface {
	BookingCreated(ctx context.Context, ev domain.BookingCreated)
	TicketChanged(ctx context.Context, ev domain.TicketChanged)
}

type pgStore struct {
	store *postgres.Store
	uow   *uow.UoW
}

// NewPostgresStore runs the engine on serializable Postgres transactions.
func NewPostgresStore(store *postgres.Store) Store {
	return &pgStore{store: store, uow: uow.NewUoW(store)}
}

func (s *pgStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error,
) error {
	return s.uow.Do(ctx, func(ctx context.Context, db postgres.DB, after func(uow.AfterCommit)) error {
		return fn(ctx, s.store.Bookings().With(db), after)
	})
}

func (s *pgStore) Reader() Tx {
	return s.store.Bookings()
}

type noopSink struct{}

func (noopSink) BookingCreated(context.Context, domain.BookingCreated) {}
func (noopSink) TicketChanged(context.Context, domain.TicketChanged)   {}
