package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

const (
	defaultCurrency  = "VND"
	defaultSeatClass = "Standard"
)

// TripEvents is told about committed trip changes. *events.Dispatcher
// implements it.
type TripEvents interface {
	TripChanged(ctx context.Context, tripID int64, reason string)
}

type StationCache interface {
	InvalidateStations(ctx context.Context) error
}

type Service struct {
	store    Store
	events   TripEvents
	stations StationCache
	log      *slog.Logger
	now      func() time.Time
}

// New builds the admin service. events and stations may be nil.
func New(store Store, ev TripEvents, stations StationCache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		store:    store,
		events:   ev,
		stations: stations,
		log:      log.With(slog.String("component", "admin")),
		now:      time.Now,
	}
}

// classify turns repository errors from a create or update of entity into
// service errors.
func classify(entity string, id int64, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(entity, id)
	case errors.Is(err, repository.ErrConflict):
		return duplicate(entity)
	case errors.Is(err, repository.ErrReferenced):
		return unknownReference(entity)
	case errors.Is(err, repository.ErrNoFields):
		return invalid("patch", "no fields to update")
	}
	return err
}

func classifyDelete(entity string, id int64, err error) error {
	if errors.Is(err, repository.ErrReferenced) {
		return inUse(entity, id)
	}
	return classify(entity, id, err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func (s *Service) stationsChanged(ctx context.Context) {
	if s.stations == nil {
		return
	}

	if err := s.stations.InvalidateStations(ctx); err != nil {
		s.log.Error("invalidate stations cache", slog.String("error", err.Error()))
	}
}

func (s *Service) tripChanged(ctx context.Context, tripID int64, reason string) {
	if s.events != nil {
		s.events.TripChanged(ctx, tripID, reason)
	}
}

// Stations

func (s *Service) CreateStation(ctx context.Context, st domain.Station) (int64, error) {
	const op = "service.admin.CreateStation"

	if blank(st.Name) {
		return 0, fmt.Errorf("%s:%w", op, invalid("station_name", "is required"))
	}

	if blank(st.City) {
		return 0, fmt.Errorf("%s:%w", op, invalid("city", "is required"))
	}

	id, err := s.store.Repos().Catalog.CreateStation(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, classify("Station", 0, err))
	}

	s.stationsChanged(ctx)

	return id, nil
}

func (s *Service) ListStations(ctx context.Context) ([]domain.Station, error) {
	const op = "service.admin.ListStations"

	out, err := s.store.Repos().Catalog.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}

func (s *Service) UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error {
	const op = "service.admin.UpdateStation"

	if p.Name != nil && blank(*p.Name) {
		return fmt.Errorf("%s:%w", op, invalid("station_name", "must not be empty"))
	}

	if err := s.store.Repos().Catalog.UpdateStation(ctx, id, p); err != nil {
		return fmt.Errorf("%s:%w", op, classify("Station", id, err))
	}

	s.stationsChanged(ctx)

	return nil
}

func (s *Service) DeleteStation(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteStation"

	if err := s.store.Repos().Catalog.DeleteStation(ctx, id); err != nil {
		return fmt.Errorf("%s:%w", op, classifyDelete("Station", id, err))
	}

	s.stationsChanged(ctx)

	return nil
}

// Operators

func (s *Service) CreateOperator(ctx context.Context, o domain.Operator) (int64, error) {
	const op = "service.admin.CreateOperator"

	if blank(o.LegalName) {
		return 0, fmt.Errorf("%s:%w", op, invalid("legal_name", "is required"))
	}

	if blank(o.BrandName) {
		return 0, fmt.Errorf("%s:%w", op, invalid("brand_name", "is required"))
	}

	id, err := s.store.Repos().Catalog.CreateOperator(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, classify("Operator", 0, err))
	}

	return id, nil
}

func (s *Service) ListOperators(ctx context.Context) ([]domain.Operator, error) {
	const op = "service.admin.ListOperators"

	out, err := s.store.Repos().Catalog.ListOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}

func (s *Service) UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error {
	const op = "service.admin.UpdateOperator"

	if err := s.store.Repos().Catalog.UpdateOperator(ctx, id, p); err != nil {
		return fmt.Errorf("%s:%w", op, classify("Operator", id, err))
	}

	return nil
}

func (s *Service) DeleteOperator(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteOperator"

	if err := s.store.Repos().Catalog.DeleteOperator(ctx, id); err != nil {
		return fmt.Errorf("%s:%w", op, classifyDelete("Operator", id, err))
	}

	return nil
}

// Buses

func (s *Service) CreateBus(ctx context.Context, b domain.Bus) (int64, error) {
	const op = "service.admin.CreateBus"

	switch {
	case b.OperatorID <= 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("operator_id", "must be a positive id"))
	case blank(b.PlateNumber):
		return 0, fmt.Errorf("%s:%w", op, invalid("plate_number", "is required"))
	case b.Capacity <= 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("capacity", "must be positive"))
	}

	id, err := s.store.Repos().Catalog.CreateBus(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, classify("Bus", 0, err))
	}

	return id, nil
}

// ListBuses lists the buses matching f.
func (s *Service) ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error) {
	const op = "service.admin.ListBuses"

	out, err := s.store.Repos().Catalog.ListBuses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}

func (s *Service) UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error {
	const op = "service.admin.UpdateBus"

	if p.Capacity != nil && *p.Capacity <= 0 {
		return fmt.Errorf("%s:%w", op, invalid("capacity", "must be positive"))
	}

	if err := s.store.Repos().Catalog.UpdateBus(ctx, id, p); err != nil {
		return fmt.Errorf("%s:%w", op, classify("Bus", id, err))
	}

	return nil
}

func (s *Service) DeleteBus(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteBus"

	if err := s.store.Repos().Catalog.DeleteBus(ctx, id); err != nil {
		return fmt.Errorf("%s:%w", op, classifyDelete("Bus", id, err))
	}

	return nil
}

// Routes and fares

func checkRoute(rt domain.Route) error {
	switch {
	case rt.DepartureStationID <= 0:
		return invalid("departure_station_id", "must be a positive id")
	case rt.ArrivalStationID <= 0:
		return invalid("arrival_station_id", "must be a positive id")
	case rt.DepartureStationID == rt.ArrivalStationID:
		return invalid("arrival_station_id", "must differ from the departure station")
	case rt.OperatorID <= 0:
		return invalid("operator_id", "must be a positive id")
	case rt.DistanceKM <= 0:
		return invalid("distance", "must be positive")
	case rt.DefaultDuration < time.Minute:
		return invalid("default_duration_min", "must be at least one minute")
	}
	return nil
}

// CreateRoute stores a route. When price is non-nil a Standard fare in VND
// valid for one year from today is created with it, in the same
// transaction.
func (s *Service) CreateRoute(ctx context.Context, rt domain.Route, price *int64) (int64, error) {
	const op = "service.admin.CreateRoute"

	if err := checkRoute(rt); err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if price != nil && *price < 0 {
		return 0, fmt.Errorf("%s:%w", op, invalid("price", "must not be negative"))
	}

	var id int64
	err := s.store.InTx(ctx, func(ctx context.Context, r Repos, _ func(uow.AfterCommit)) error {
		var err error
		id, err = r.Catalog.CreateRoute(ctx, rt)
		if err != nil {
			return classify("Route", 0, err)
		}

		if price == nil {
			return nil
		}

		from := s.now().Truncate(24 * time.Hour)
		to := from.AddDate(1, 0, 0)
		if _, err := r.Catalog.CreateFare(ctx, domain.Fare{
			RouteID:   id,
			Currency:  defaultCurrency,
			SeatClass: defaultSeatClass,
			BaseFare:  *price,
			SeatPrice: *price,
			ValidFrom: &from,
			ValidTo:   &to,
		}); err != nil {
			return classify("Fare", 0, err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

func (s *Service) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	const op = "service.admin.GetRoute"

	rt, err := s.store.Repos().Catalog.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, classify("Route", id, err))
	}

	return rt, nil
}

func (s *Service) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	const op = "service.admin.ListRoutes"

	out, err := s.store.Repos().Catalog.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}

func (s *Service) UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error {
	const op = "service.admin.UpdateRoute"

	switch {
	case p.DistanceKM != nil && *p.DistanceKM <= 0:
		return fmt.Errorf("%s:%w", op, invalid("distance", "must be positive"))
	case p.DefaultDurationMin != nil && *p.DefaultDurationMin <= 0:
		return fmt.Errorf("%s:%w", op, invalid("default_duration_min", "must be positive"))
	case p.DepartureStationID != nil && p.ArrivalStationID != nil && *p.DepartureStationID == *p.ArrivalStationID:
		return fmt.Errorf("%s:%w", op, invalid("arrival_station_id", "must differ from the departure station"))
	}

	if err := s.store.Repos().Catalog.UpdateRoute(ctx, id, p); err != nil {
		return fmt.Errorf("%s:%w", op, classify("Route", id, err))
	}

	return nil
}

func (s *Service) DeleteRoute(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteRoute"

	if err := s.store.Repos().Catalog.DeleteRoute(ctx, id); err != nil {
		return fmt.Errorf("%s:%w", op, classifyDelete("Route", id, err))
	}

	return nil
}

func (s *Service) CreateFare(ctx context.Context, f domain.Fare) (int64, error) {
	const op = "service.admin.CreateFare"

	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	if f.Currency == "" {
		f.Currency = defaultCurrency
	}

	if blank(f.SeatClass) {
		f.SeatClass = defaultSeatClass
	}

	switch {
	case f.RouteID <= 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("route_id", "must be a positive id"))
	case f.SeatPrice < 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("seat_price", "must not be negative"))
	case f.BaseFare < 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("base_fare", "must not be negative"))
	case f.ValidFrom != nil && f.ValidTo != nil && f.ValidTo.Before(*f.ValidFrom):
		return 0, fmt.Errorf("%s:%w", op, invalid("valid_to", "must not precede valid_from"))
	}

	id, err := s.store.Repos().Catalog.CreateFare(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, classify("Route", f.RouteID, err))
	}

	return id, nil
}

func (s *Service) ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error) {
	const op = "service.admin.ListFares"

	out, err := s.store.Repos().Catalog.ListFares(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}
