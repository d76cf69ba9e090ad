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

// CatalogRepo manages the reference data trips are built from: stations,
// operators, buses, routes and fares.
type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// applyPatch runs the UPDATE built by spec and reports ErrNotFound when no
// row has the given id.
func (r *CatalogRepo) applyPatch(ctx context.Context, spec updateSpec, id int64, set []assignment) error {
	q, args, err := spec.build(id, set)
	if err != nil {
		return err
	}

	tag, err := r.handle().Exec(ctx, q, args...)
	if err != nil {
		return translateDBErr(err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *CatalogRepo) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := r.handle().Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return translateDBErr(err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *CatalogRepo) CreateStation(ctx context.Context, s domain.Station) (int64, error) {
	const op = "postgres.CatalogRepo.CreateStation"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO stations(name, city, province, active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		s.Name, s.City, s.Province, s.Active,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) ListStations(ctx context.Context) ([]domain.Station, error) {
	const op = "postgres.CatalogRepo.ListStations"

	rows, err := r.handle().Query(ctx,
		`SELECT id, name, city, province, active FROM stations ORDER BY id`,
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

func (r *CatalogRepo) UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error {
	const op = "postgres.CatalogRepo.UpdateStation"

	var set []assignment
	set = setIf(set, "name", p.Name)
	set = setIf(set, "city", p.City)
	set = setIf(set, "province", p.Province)
	set = setIf(set, "active", p.Active)

	if err := r.applyPatch(ctx, stationUpdates, id, set); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// DeleteStation removes a station.
//
// Returns:
//   - error: repository.ErrReferenced if a route still uses the station.
func (r *CatalogRepo) DeleteStation(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteStation"

	if err := r.deleteByID(ctx, "stations", id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) CreateOperator(ctx context.Context, o domain.Operator) (int64, error) {
	const op = "postgres.CatalogRepo.CreateOperator"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO operators(legal_name, brand_name, brand_email, tax_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		o.LegalName, o.BrandName, o.BrandEmail, o.TaxID,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) ListOperators(ctx context.Context) ([]domain.Operator, error) {
	const op = "postgres.CatalogRepo.ListOperators"

	rows, err := r.handle().Query(ctx,
		`SELECT id, legal_name, brand_name, brand_email, tax_id FROM operators ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Operator
	for rows.Next() {
		var o domain.Operator
		if err := rows.Scan(&o.ID, &o.LegalName, &o.BrandName, &o.BrandEmail, &o.TaxID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error {
	const op = "postgres.CatalogRepo.UpdateOperator"

	var set []assignment
	set = setIf(set, "legal_name", p.LegalName)
	set = setIf(set, "brand_name", p.BrandName)
	set = setIf(set, "brand_email", p.BrandEmail)
	set = setIf(set, "tax_id", p.TaxID)

	if err := r.applyPatch(ctx, operatorUpdates, id, set); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) DeleteOperator(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteOperator"

	if err := r.deleteByID(ctx, "operators", id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) CreateBus(ctx context.Context, b domain.Bus) (int64, error) {
	const op = "postgres.CatalogRepo.CreateBus"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO buses(operator_id, plate_number, vehicle_type, capacity, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		b.OperatorID, b.PlateNumber, b.VehicleType, b.Capacity, b.Active,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// GetBus returns a bus by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the bus does not exist.
func (r *CatalogRepo) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	const op = "postgres.CatalogRepo.GetBus"

	var b domain.Bus
	if err := r.handle().QueryRow(ctx,
		`SELECT id, operator_id, plate_number, vehicle_type, capacity, active
		 FROM buses WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.OperatorID, &b.PlateNumber, &b.VehicleType, &b.Capacity, &b.Active); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// ListBuses lists the buses matching f.
func (r *CatalogRepo) ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error) {
	const op = "postgres.CatalogRepo.ListBuses"

	rows, err := r.handle().Query(ctx,
		`SELECT id, operator_id, plate_number, vehicle_type, capacity, active
		 FROM buses
		 WHERE ($1::BIGINT IS NULL OR operator_id = $1)
		   AND ($2::BOOLEAN IS NULL OR active = $2)
		 ORDER BY id`,
		f.OperatorID, f.Active,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Bus
	for rows.Next() {
		var b domain.Bus
		if err := rows.Scan(&b.ID, &b.OperatorID, &b.PlateNumber, &b.VehicleType, &b.Capacity, &b.Active); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error {
	const op = "postgres.CatalogRepo.UpdateBus"

	var set []assignment
	set = setIf(set, "plate_number", p.PlateNumber)
	set = setIf(set, "vehicle_type", p.VehicleType)
	set = setIf(set, "capacity", p.Capacity)
	set = setIf(set, "active", p.Active)

	if err := r.applyPatch(ctx, busUpdates, id, set); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) DeleteBus(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteBus"

	if err := r.deleteByID(ctx, "buses", id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) CreateRoute(ctx context.Context, rt domain.Route) (int64, error) {
	const op = "postgres.CatalogRepo.CreateRoute"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO routes(departure_station_id, arrival_station_id, operator_id, distance_km, default_duration_min)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		rt.DepartureStationID,
		rt.ArrivalStationID,
		rt.OperatorID,
		rt.DistanceKM,
		int(rt.DefaultDuration/time.Minute),
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

const routeColumns = `id, departure_station_id, arrival_station_id, operator_id, distance_km, default_duration_min`

func scanRoute(row pgx.Row) (*domain.Route, error) {
	var (
		rt      domain.Route
		minutes int
	)
	if err := row.Scan(
		&rt.ID,
		&rt.DepartureStationID,
		&rt.ArrivalStationID,
		&rt.OperatorID,
		&rt.DistanceKM,
		&minutes,
	); err != nil {
		return nil, err
	}

	rt.DefaultDuration = time.Duration(minutes) * time.Minute

	return &rt, nil
}

// GetRoute returns a route by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the route does not exist.
func (r *CatalogRepo) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	const op = "postgres.CatalogRepo.GetRoute"

	rt, err := scanRoute(r.handle().QueryRow(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rt, nil
}

func (r *CatalogRepo) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	const op = "postgres.CatalogRepo.ListRoutes"

	rows, err := r.handle().Query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error {
	const op = "postgres.CatalogRepo.UpdateRoute"

	var set []assignment
	set = setIf(set, "departure_station_id", p.DepartureStationID)
	set = setIf(set, "arrival_station_id", p.ArrivalStationID)
	set = setIf(set, "operator_id", p.OperatorID)
	set = setIf(set, "distance_km", p.DistanceKM)
	set = setIf(set, "default_duration_min", p.DefaultDurationMin)

	if err := r.applyPatch(ctx, routeUpdates, id, set); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// DeleteRoute removes a route and its fares.
//
// Returns:
//   - error: repository.ErrReferenced if trips were scheduled on the route.
func (r *CatalogRepo) DeleteRoute(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteRoute"

	if err := r.deleteByID(ctx, "routes", id); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *CatalogRepo) CreateFare(ctx context.Context, f domain.Fare) (int64, error) {
	const op = "postgres.CatalogRepo.CreateFare"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO fares(route_id, currency, seat_class, base_fare, seat_price, valid_from, valid_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		f.RouteID, f.Currency, f.SeatClass, f.BaseFare, f.SeatPrice, f.ValidFrom, f.ValidTo,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error) {
	const op = "postgres.CatalogRepo.ListFares"

	rows, err := r.handle().Query(ctx,
		`SELECT `+fareColumns+` FROM fares WHERE route_id = $1 ORDER BY id`,
		routeID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Fare
	for rows.Next() {
		f, err := scanFare(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
