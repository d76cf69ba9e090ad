package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
)

// BookingRepo holds the statements the booking engine runs inside its
// transaction. Outside a transaction it falls back to the pool.
type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// TripCapacity returns the trip's route and its operator, status, service
// date and the capacity of the bus assigned to it.
//
// Returns:
//   - error: repository.ErrNotFound if the trip does not exist.
func (r *BookingRepo) TripCapacity(ctx context.Context, tripID int64) (*domain.TripCapacity, error) {
	const op = "postgres.BookingRepo.TripCapacity"

	var (
		tc     domain.TripCapacity
		status string
	)
	err := r.handle().QueryRow(ctx,
		`SELECT t.id, t.route_id, r.operator_id, t.status, t.service_date, b.capacity
		 FROM trips t
		 JOIN routes r ON r.id = t.route_id
		 JOIN buses b ON b.id = t.bus_id
		 WHERE t.id = $1`,
		tripID,
	).Scan(&tc.TripID, &tc.RouteID, &tc.OperatorID, &status, &tc.ServiceDate, &tc.Capacity)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	tc.Status = domain.TripStatus(status)

	return &tc, nil
}

// Fare returns a fare by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the fare does not exist.
func (r *BookingRepo) Fare(ctx context.Context, fareID int64) (*domain.Fare, error) {
	const op = "postgres.BookingRepo.Fare"

	f, err := scanFare(r.handle().QueryRow(ctx,
		`SELECT `+fareColumns+` FROM fares WHERE id = $1`,
		fareID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return f, nil
}

// TakenSeats returns which of seatCodes are held by an active ticket on the trip.
func (r *BookingRepo) TakenSeats(ctx context.Context, tripID int64, seatCodes []string) ([]string, error) {
	const op = "postgres.BookingRepo.TakenSeats"

	rows, err := r.handle().Query(ctx,
		`SELECT seat_code
		 FROM tickets
		 WHERE trip_id = $1
		   AND seat_code = ANY($2)
		   AND status IN ('Issued', 'Used')
		 ORDER BY seat_code`,
		tripID, seatCodes,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	taken, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return taken, nil
}

// InsertBooking stores b and fills its CreatedAt.
func (r *BookingRepo) InsertBooking(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.InsertBooking"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO bookings(id, account_id, operator_id, currency, total_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		b.ID, b.AccountID, b.OperatorID, b.Currency, b.TotalAmount, string(b.Status),
	).Scan(&b.CreatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// InsertTickets stores tickets in one batch and returns them with the serial
// numbers and timestamps assigned by the database.
//
// Returns:
//   - error: *repository.SeatConflictError if an active ticket already holds one of the seats.
func (r *BookingRepo) InsertTickets(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	const op = "postgres.BookingRepo.InsertTickets"

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(id, booking_id, trip_id, fare_id, account_id, seat_code, seat_price, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING serial_number, created_at`,
			t.ID, t.BookingID, t.TripID, t.FareID, t.AccountID, t.SeatCode, t.SeatPrice, string(t.Status),
		)
	}

	br := r.handle().SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.Ticket, len(tickets))
	copy(out, tickets)

	for i := range out {
		if err := br.QueryRow().Scan(&out[i].SerialNumber, &out[i].CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
	}

	if err := br.Close(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// RecalculateTotal sets the booking total to the sum of its active tickets'
// seat prices and returns the new total.
func (r *BookingRepo) RecalculateTotal(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	const op = "postgres.BookingRepo.RecalculateTotal"

	var total int64
	err := r.handle().QueryRow(ctx,
		`UPDATE bookings
		 SET total_amount = (
		     SELECT COALESCE(SUM(seat_price), 0)
		     FROM tickets
		     WHERE booking_id = $1 AND status IN ('Issued', 'Used')
		 )
		 WHERE id = $1
		 RETURNING total_amount`,
		bookingID,
	).Scan(&total)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return total, nil
}

// TicketForUpdate loads a ticket and locks its row until the transaction ends.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket does not exist.
func (r *BookingRepo) TicketForUpdate(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.BookingRepo.TicketForUpdate"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`,
		ticketID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *BookingRepo) SetTicketStatus(ctx context.Context, ticketID uuid.UUID, status domain.TicketStatus) error {
	const op = "postgres.BookingRepo.SetTicketStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE id = $1`,
		ticketID, string(status),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ReleaseFromBooking adds amount to the booking's refunded total and derives
// its status from the tickets still active. The original total is kept.
func (r *BookingRepo) ReleaseFromBooking(
	ctx context.Context,
	bookingID uuid.UUID,
	amount int64,
) (domain.BookingStatus, error) {
	const op = "postgres.BookingRepo.ReleaseFromBooking"

	var status string
	err := r.handle().QueryRow(ctx,
		`UPDATE bookings b
		 SET refunded_amount = b.refunded_amount + $2,
		     status = CASE
		         WHEN EXISTS (
		             SELECT 1 FROM tickets t
		             WHERE t.booking_id = b.id AND t.status IN ('Issued', 'Used')
		         ) THEN 'PartiallyReleased'
		         ELSE 'Released'
		     END
		 WHERE b.id = $1
		 RETURNING b.status`,
		bookingID, amount,
	).Scan(&status)
	if err != nil {
		return "", wrapDBErr(op, err)
	}

	return domain.BookingStatus(status), nil
}

// BookingWithTickets returns a booking and all of its tickets.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) BookingWithTickets(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithTickets, error) {
	const op = "postgres.BookingRepo.BookingWithTickets"

	db := r.handle()

	var (
		out    domain.BookingWithTickets
		status string
	)
	err := db.QueryRow(ctx,
		`SELECT id, account_id, operator_id, currency, total_amount, refunded_amount, status, created_at
		 FROM bookings
		 WHERE id = $1`,
		bookingID,
	).Scan(
		&out.Booking.ID,
		&out.Booking.AccountID,
		&out.Booking.OperatorID,
		&out.Booking.Currency,
		&out.Booking.TotalAmount,
		&out.Booking.RefundedAmount,
		&status,
		&out.Booking.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out.Booking.Status = domain.BookingStatus(status)

	rows, err := db.Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE booking_id = $1
		 ORDER BY serial_number`,
		bookingID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.Tickets = append(out.Tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &out, nil
}

const ticketColumns = `id, serial_number, booking_id, trip_id, fare_id, account_id, seat_code, seat_price, status, created_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		status string
	)
	if err := row.Scan(
		&t.ID,
		&t.SerialNumber,
		&t.BookingID,
		&t.TripID,
		&t.FareID,
		&t.AccountID,
		&t.SeatCode,
		&t.SeatPrice,
		&status,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}

	t.Status = domain.TicketStatus(status)

	return &t, nil
}

const fareColumns = `id, route_id, currency, seat_class, base_fare, seat_price, valid_from, valid_to`

func scanFare(row pgx.Row) (*domain.Fare, error) {
	var f domain.Fare
	if err := row.Scan(
		&f.ID,
		&f.RouteID,
		&f.Currency,
		&f.SeatClass,
		&f.BaseFare,
		&f.SeatPrice,
		&f.ValidFrom,
		&f.ValidTo,
	); err != nil {
		return nil, err
	}

	return &f, nil
}
