package admin

import (
	"context"
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository/postgres"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

// Catalog is implemented by *postgres.CatalogRepo.
type Catalog interface {
	CreateStation(ctx context.Context, s domain.Station) (int64, error)
	ListStations(ctx context.Context) ([]domain.Station, error)
	UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error
	DeleteStation(ctx context.Context, id int64) error

	CreateOperator(ctx context.Context, o domain.Operator) (int64, error)
	ListOperators(ctx context.Context) ([]domain.Operator, error)
	UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error
	DeleteOperator(ctx context.Context, id int64) error

	CreateBus(ctx context.Context, b domain.Bus) (int64, error)
	GetBus(ctx context.Context, id int64) (*domain.Bus, error)
	ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error)
	UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error
	DeleteBus(ctx context.Context, id int64) error

	CreateRoute(ctx context.Context, rt domain.Route) (int64, error)
	GetRoute(ctx context.Context, id int64) (*domain.Route, error)
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error
	DeleteRoute(ctx context.Context, id int64) error

	CreateFare(ctx context.Context, f domain.Fare) (int64, error)
	ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error)
}

// Trips is implemented by *postgres.TripRepo.
type Trips interface {
	CreateTrip(ctx context.Context, t domain.Trip) (int64, error)
	GetTrip(ctx context.Context, id int64, forUpdate bool) (*domain.Trip, error)
	ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error)
	BusBusy(ctx context.Context, busID int64, from, to time.Time, exceptTripID int64) (bool, error)
	UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error
	IssuedTickets(ctx context.Context, tripID int64) (int, error)
}

// Repos are the repositories bound to one transaction.
type Repos struct {
	Catalog Catalog
	Trips   Trips
}

type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos, after func(uow.AfterCommit)) error) error
}

type pgStore struct {
	store *postgres.Store
	uow   *uow.UoW
}

func NewPostgresStore(store *postgres.Store) Store {
	return &pgStore{store: store, uow: uow.NewUoW(store)}
}

func (s *pgStore) Repos() Repos {
	return Repos{Catalog: s.store.Catalog(), Trips: s.store.Trips()}
}

func (s *pgStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, r Repos, after func(uow.AfterCommit)) error,
) error {
	return s.uow.Do(ctx, func(ctx context.Context, db postgres.DB, after func(uow.AfterCommit)) error {
		return fn(ctx, Repos{
			Catalog: s.store.Catalog().With(db),
			Trips:   s.store.Trips().With(db),
		}, after)
	})
}
