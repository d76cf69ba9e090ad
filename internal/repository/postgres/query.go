package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// TripSeatMap builds the occupancy view of a trip.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - tripID: unique identifier of the trip.
//
// Returns:
//   - *domain.TripSeatMap: capacity, booked seat codes and derived counts.
//   - error: repository.ErrNotFound if the trip is not found.
func (r *QueryRepo) TripSeatMap(ctx context.Context, tripID int64) (*domain.TripSeatMap, error) {
	const op = "postgres.QueryRepo.TripSeatMap"

	db := r.handle()

	out := domain.TripSeatMap{TripID: tripID, BookedSeats: []string{}}
	err := db.QueryRow(ctx,
		`SELECT b.capacity
		 FROM trips t
		 JOIN buses b ON b.id = t.bus_id
		 WHERE t.id = $1`,
		tripID,
	).Scan(&out.TotalCapacity)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT seat_code
		 FROM tickets
		 WHERE trip_id = $1 AND status IN ('Issued', 'Used')
		 ORDER BY length(seat_code), seat_code`,
		tripID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	booked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	if booked != nil {
		out.BookedSeats = booked
	}

	out.AvailableSeats = out.TotalCapacity - len(out.BookedSeats)
	if out.AvailableSeats < 0 {
		out.AvailableSeats = 0
	}
	if out.TotalCapacity > 0 {
		out.OccupancyRate = float64(len(out.BookedSeats)) / float64(out.TotalCapacity)
	}

	return &out, nil
}

// ActiveStations lists stations that accept departures, ordered by city.
func (r *QueryRepo) ActiveStations(ctx context.Context) ([]domain.Station, error) {
	const op = "postgres.QueryRepo.ActiveStations"

	rows, err := r.handle().Query(ctx,
		`SELECT id, name, city, province, active
		 FROM stations
		 WHERE active
		 ORDER BY city, name`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Station
	for rows.Next() {
		var s domain.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.Province, &s.Active); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ScheduledTrips lists Scheduled trips leaving fromStation during the day
// that starts at day. When toStation is non-nil only trips arriving there
// are returned. Each trip carries its operator, its latest fare and its free
// seat count, which is all a client needs to book it.
func (r *QueryRepo) ScheduledTrips(
	ctx context.Context,
	fromStation int64,
	toStation *int64,
	day time.Time,
) ([]domain.ScheduledTrip, error) {
	const op = "postgres.QueryRepo.ScheduledTrips"

	rows, err := r.handle().Query(ctx,
		`SELECT t.id, t.route_id, t.service_date,
		        ds.id, ds.name, ds.city,
		        ars.id, ars.name, ars.city,
		        b.vehicle_type, o.id, o.brand_name,
		        COALESCE(f.id, 0), COALESCE(f.seat_price, 0), COALESCE(f.currency, ''),
		        b.capacity - (
		            SELECT count(*) FROM tickets tk
		            WHERE tk.trip_id = t.id AND tk.status IN ('Issued', 'Used')
		        )
		 FROM trips t
		 JOIN routes r ON r.id = t.route_id
		 JOIN stations ds ON ds.id = r.departure_station_id
		 JOIN stations ars ON ars.id = r.arrival_station_id
		 JOIN buses b ON b.id = t.bus_id
		 JOIN operators o ON o.id = r.operator_id
		 LEFT JOIN LATERAL (
		     SELECT id, seat_price, currency FROM fares
		     WHERE route_id = r.id
		     ORDER BY id DESC
		     LIMIT 1
		 ) f ON TRUE
		 WHERE r.departure_station_id = $1
		   AND ($2::BIGINT IS NULL OR r.arrival_station_id = $2)
		   AND t.service_date >= $3 AND t.service_date < $4
		   AND t.status = 'Scheduled'
		 ORDER BY t.service_date`,
		fromStation, toStation, day, day.Add(24*time.Hour),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.ScheduledTrip
	for rows.Next() {
		var st domain.ScheduledTrip
		if err := rows.Scan(
			&st.TripID,
			&st.RouteID,
			&st.ServiceDate,
			&st.DepartureStationID,
			&st.DepartureStation,
			&st.DepartureCity,
			&st.ArrivalStationID,
			&st.ArrivalStation,
			&st.ArrivalCity,
			&st.VehicleType,
			&st.OperatorID,
			&st.OperatorBrand,
			&st.FareID,
			&st.SeatPrice,
			&st.Currency,
			&st.AvailableSeats,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// TripDetail returns one trip with its route, stations, bus, operator,
// latest fare and free seat count, whatever the trip status.
//
// Returns:
//   - error: repository.ErrNotFound if the trip is not found.
func (r *QueryRepo) TripDetail(ctx context.Context, tripID int64) (*domain.TripDetail, error) {
	const op = "postgres.QueryRepo.TripDetail"

	var (
		d      domain.TripDetail
		status string
	)
	err := r.handle().QueryRow(ctx,
		`SELECT t.id, t.status, t.service_date, r.id,
		        ds.id, ds.name, ds.city,
		        ars.id, ars.name, ars.city,
		        b.id, b.plate_number, b.vehicle_type, b.capacity,
		        o.id, o.brand_name,
		        COALESCE(f.id, 0), COALESCE(f.seat_price, 0), COALESCE(f.currency, ''),
		        b.capacity - (
		            SELECT count(*) FROM tickets tk
		            WHERE tk.trip_id = t.id AND tk.status IN ('Issued', 'Used')
		        )
		 FROM trips t
		 JOIN routes r ON r.id = t.route_id
		 JOIN stations ds ON ds.id = r.departure_station_id
		 JOIN stations ars ON ars.id = r.arrival_station_id
		 JOIN buses b ON b.id = t.bus_id
		 JOIN operators o ON o.id = r.operator_id
		 LEFT JOIN LATERAL (
		     SELECT id, seat_price, currency FROM fares
		     WHERE route_id = r.id
		     ORDER BY id DESC
		     LIMIT 1
		 ) f ON TRUE
		 WHERE t.id = $1`,
		tripID,
	).Scan(
		&d.TripID,
		&status,
		&d.ServiceDate,
		&d.RouteID,
		&d.DepartureStationID,
		&d.DepartureStation,
		&d.DepartureCity,
		&d.ArrivalStationID,
		&d.ArrivalStation,
		&d.ArrivalCity,
		&d.BusID,
		&d.PlateNumber,
		&d.VehicleType,
		&d.Capacity,
		&d.OperatorID,
		&d.OperatorBrand,
		&d.FareID,
		&d.SeatPrice,
		&d.Currency,
		&d.AvailableSeats,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	d.Status = domain.TripStatus(status)
	if d.AvailableSeats < 0 {
		d.AvailableSeats = 0
	}

	return &d, nil
}

const ticketDetailsSelect = `SELECT tk.id, tk.serial_number, tk.booking_id, tk.trip_id, tk.fare_id,
        tk.account_id, tk.seat_code, tk.seat_price, tk.status, tk.created_at,
        bk.currency, t.status, t.service_date,
        ds.name, ds.city, ars.name, ars.city,
        b.plate_number, b.vehicle_type, o.brand_name,
        a.phone, a.email
 FROM tickets tk
 JOIN bookings bk ON bk.id = tk.booking_id
 JOIN trips t ON t.id = tk.trip_id
 JOIN routes r ON r.id = t.route_id
 JOIN stations ds ON ds.id = r.departure_station_id
 JOIN stations ars ON ars.id = r.arrival_station_id
 JOIN buses b ON b.id = t.bus_id
 JOIN operators o ON o.id = r.operator_id
 JOIN accounts a ON a.id = tk.account_id`

func scanTicketDetails(row pgx.Row) (*domain.TicketDetails, error) {
	var (
		d            domain.TicketDetails
		ticketStatus string
		tripStatus   string
	)
	if err := row.Scan(
		&d.Ticket.ID,
		&d.Ticket.SerialNumber,
		&d.Ticket.BookingID,
		&d.Ticket.TripID,
		&d.Ticket.FareID,
		&d.Ticket.AccountID,
		&d.Ticket.SeatCode,
		&d.Ticket.SeatPrice,
		&ticketStatus,
		&d.Ticket.CreatedAt,
		&d.Currency,
		&tripStatus,
		&d.ServiceDate,
		&d.DepartureStation,
		&d.DepartureCity,
		&d.ArrivalStation,
		&d.ArrivalCity,
		&d.PlateNumber,
		&d.VehicleType,
		&d.OperatorBrand,
		&d.AccountPhone,
		&d.AccountEmail,
	); err != nil {
		return nil, err
	}

	d.Ticket.Status = domain.TicketStatus(ticketStatus)
	d.TripStatus = domain.TripStatus(tripStatus)

	return &d, nil
}

// TicketDetails returns a ticket joined with its trip, route, bus and owner.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket is not found.
func (r *QueryRepo) TicketDetails(ctx context.Context, ticketID uuid.UUID) (*domain.TicketDetails, error) {
	const op = "postgres.QueryRepo.TicketDetails"

	d, err := scanTicketDetails(r.handle().QueryRow(ctx,
		ticketDetailsSelect+` WHERE tk.id = $1`,
		ticketID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// TicketBySerial finds a ticket by serial number whose owner's phone, with
// one leading zero removed, equals phone.
//
// Returns:
//   - error: repository.ErrNotFound if no ticket matches both.
func (r *QueryRepo) TicketBySerial(ctx context.Context, serial int64, phone string) (*domain.TicketDetails, error) {
	const op = "postgres.QueryRepo.TicketBySerial"

	d, err := scanTicketDetails(r.handle().QueryRow(ctx,
		ticketDetailsSelect+`
		 WHERE tk.serial_number = $1
		   AND regexp_replace(a.phone, '^0', '') = $2`,
		serial, phone,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// AccountTickets lists every ticket of an account, latest service date first.
func (r *QueryRepo) AccountTickets(ctx context.Context, accountID int64) ([]domain.TicketDetails, error) {
	const op = "postgres.QueryRepo.AccountTickets"

	rows, err := r.handle().Query(ctx,
		ticketDetailsSelect+`
		 WHERE tk.account_id = $1
		 ORDER BY t.service_date DESC, tk.serial_number`,
		accountID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.TicketDetails
	for rows.Next() {
		d, err := scanTicketDetails(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}

		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
