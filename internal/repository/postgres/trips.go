package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
)

type TripRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TripRepo) With(db DB) *TripRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TripRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const tripColumns = `id, route_id, bus_id, status, service_date, arrival_at`

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var (
		t      domain.Trip
		status string
	)
	if err := row.Scan(&t.ID, &t.RouteID, &t.BusID, &status, &t.ServiceDate, &t.ArrivalAt); err != nil {
		return nil, err
	}

	t.Status = domain.TripStatus(status)

	return &t, nil
}

func (r *TripRepo) CreateTrip(ctx context.Context, t domain.Trip) (int64, error) {
	const op = "postgres.TripRepo.CreateTrip"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO trips(route_id, bus_id, status, service_date, arrival_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		t.RouteID, t.BusID, string(t.Status), t.ServiceDate, t.ArrivalAt,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// GetTrip returns a trip by ID.
//
// Parameters:
//   - forUpdate: lock the trip row until the surrounding transaction ends.
//
// Returns:
//   - error: repository.ErrNotFound if the trip does not exist.
func (r *TripRepo) GetTrip(ctx context.Context, id int64, forUpdate bool) (*domain.Trip, error) {
	const op = "postgres.TripRepo.GetTrip"

	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	t, err := scanTrip(r.handle().QueryRow(ctx, q, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// ListTrips lists trips by service date, optionally only those of one route.
func (r *TripRepo) ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error) {
	const op = "postgres.TripRepo.ListTrips"

	rows, err := r.handle().Query(ctx,
		`SELECT `+tripColumns+`
		 FROM trips
		 WHERE $1::BIGINT IS NULL OR route_id = $1
		 ORDER BY service_date, id`,
		routeID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// BusBusy reports whether the bus has a non-cancelled trip whose running
// window intersects [from, to). A trip without an arrival time runs for its
// route's default duration. exceptTripID is ignored so a trip does not
// collide with itself when it is rescheduled.
func (r *TripRepo) BusBusy(ctx context.Context, busID int64, from, to time.Time, exceptTripID int64) (bool, error) {
	const op = "postgres.TripRepo.BusBusy"

	var busy bool
	err := r.handle().QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1
		     FROM trips t
		     JOIN routes rt ON rt.id = t.route_id
		     WHERE t.bus_id = $1
		       AND t.id <> $4
		       AND t.status <> 'Cancelled'
		       AND t.service_date < $3
		       AND COALESCE(t.arrival_at, t.service_date + rt.default_duration_min * INTERVAL '1 minute') > $2
		 )`,
		busID, from, to, exceptTripID,
	).Scan(&busy)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return busy, nil
}

func (r *TripRepo) UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error {
	const op = "postgres.TripRepo.UpdateTrip"

	var set []assignment
	if p.Status != nil {
		set = append(set, assignment{column: "status", value: string(*p.Status)})
	}
	set = setIf(set, "service_date", p.ServiceDate)
	set = setIf(set, "arrival_at", p.ArrivalAt)

	q, args, err := tripUpdates.build(id, set)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := r.handle().Exec(ctx, q, args...)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// IssuedTickets counts tickets of the trip that are still Issued.
func (r *TripRepo) IssuedTickets(ctx context.Context, tripID int64) (int, error) {
	const op = "postgres.TripRepo.IssuedTickets"

	var n int
	if err := r.handle().QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE trip_id = $1 AND status = 'Issued'`,
		tripID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}
