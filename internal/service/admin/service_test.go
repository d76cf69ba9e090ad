package admin

import (
	"context"
	"testing"
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/events"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"github.com/kirinyoku/tix-bus/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) CreateStation(ctx context.Context, s domain.Station) (int64, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalog) ListStations(ctx context.Context) ([]domain.Station, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Station), args.Error(1)
}

func (m *MockCatalog) UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockCatalog) DeleteStation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) CreateOperator(ctx context.Context, o domain.Operator) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalog) ListOperators(ctx context.Context) ([]domain.Operator, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Operator), args.Error(1)
}

func (m *MockCatalog) UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockCatalog) DeleteOperator(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) CreateBus(ctx context.Context, b domain.Bus) (int64, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalog) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bus), args.Error(1)
}

func (m *MockCatalog) ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Bus), args.Error(1)
}

func (m *MockCatalog) UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockCatalog) DeleteBus(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) CreateRoute(ctx context.Context, rt domain.Route) (int64, error) {
	args := m.Called(ctx, rt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalog) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Route), args.Error(1)
}

func (m *MockCatalog) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Route), args.Error(1)
}

func (m *MockCatalog) UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockCatalog) DeleteRoute(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) CreateFare(ctx context.Context, f domain.Fare) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalog) ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error) {
	args := m.Called(ctx, routeID)
	return args.Get(0).([]domain.Fare), args.Error(1)
}

type MockTrips struct {
	mock.Mock
}

func (m *MockTrips) CreateTrip(ctx context.Context, t domain.Trip) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTrips) GetTrip(ctx context.Context, id int64, forUpdate bool) (*domain.Trip, error) {
	args := m.Called(ctx, id, forUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

func (m *MockTrips) ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error) {
	args := m.Called(ctx, routeID)
	return args.Get(0).([]domain.Trip), args.Error(1)
}

func (m *MockTrips) BusBusy(ctx context.Context, busID int64, from, to time.Time, exceptTripID int64) (bool, error) {
	args := m.Called(ctx, busID, from, to, exceptTripID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrips) UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockTrips) IssuedTickets(ctx context.Context, tripID int64) (int, error) {
	args := m.Called(ctx, tripID)
	return args.Int(0), args.Error(1)
}

// fakeStore runs transactions straight on the mocks and fires hooks only
// when fn succeeds.
type fakeStore struct {
	cat   *MockCatalog
	trips *MockTrips
}

func (f *fakeStore) Repos() Repos { return Repos{Catalog: f.cat, Trips: f.trips} }

func (f *fakeStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, r Repos, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit
	if err := fn(ctx, f.Repos(), func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type tripEvent struct {
	tripID int64
	reason string
}

type recordingEvents struct {
	got []tripEvent
}

func (r *recordingEvents) TripChanged(_ context.Context, tripID int64, reason string) {
	r.got = append(r.got, tripEvent{tripID, reason})
}

type countingStations struct{ n int }

func (c *countingStations) InvalidateStations(context.Context) error {
	c.n++
	return nil
}

func newTestService() (*Service, *fakeStore, *recordingEvents, *countingStations) {
	st := &fakeStore{cat: new(MockCatalog), trips: new(MockTrips)}
	ev := &recordingEvents{}
	cs := &countingStations{}
	return New(st, ev, cs, nil), st, ev, cs
}

func TestScheduleTrip(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 11, 2, 7, 30, 0, 0, time.UTC)
	route := &domain.Route{ID: 3, DefaultDuration: 5 * time.Hour}

	t.Run("schedules on a free bus", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.cat.On("GetBus", mock.Anything, int64(9)).Return(&domain.Bus{ID: 9, Active: true, Capacity: 40}, nil)
		st.cat.On("GetRoute", mock.Anything, int64(3)).Return(route, nil)
		st.trips.On("BusBusy", mock.Anything, int64(9), start, start.Add(5*time.Hour), int64(0)).Return(false, nil)
		st.trips.On("CreateTrip", mock.Anything, domain.Trip{
			RouteID:     3,
			BusID:       9,
			Status:      domain.TripScheduled,
			ServiceDate: start,
		}).Return(int64(77), nil)

		id, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start})
		require.NoError(t, err)
		assert.Equal(t, int64(77), id)
		st.cat.AssertExpectations(t)
		st.trips.AssertExpectations(t)
	})

	t.Run("arrival time bounds the window", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		arrival := start.Add(2 * time.Hour)
		st.cat.On("GetBus", mock.Anything, int64(9)).Return(&domain.Bus{ID: 9, Active: true}, nil)
		st.cat.On("GetRoute", mock.Anything, int64(3)).Return(route, nil)
		st.trips.On("BusBusy", mock.Anything, int64(9), start, arrival, int64(0)).Return(false, nil)
		st.trips.On("CreateTrip", mock.Anything, mock.Anything).Return(int64(78), nil)

		_, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start, ArrivalAt: &arrival})
		require.NoError(t, err)
		st.trips.AssertExpectations(t)
	})

	t.Run("bus double booked", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.cat.On("GetBus", mock.Anything, int64(9)).Return(&domain.Bus{ID: 9, Active: true}, nil)
		st.cat.On("GetRoute", mock.Anything, int64(3)).Return(route, nil)
		st.trips.On("BusBusy", mock.Anything, int64(9), mock.Anything, mock.Anything, int64(0)).Return(true, nil)

		_, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start})
		require.ErrorIs(t, err, ErrBusDoubleBooked)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		st.trips.AssertNotCalled(t, "CreateTrip", mock.Anything, mock.Anything)
	})

	t.Run("inactive bus", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.cat.On("GetBus", mock.Anything, int64(9)).Return(&domain.Bus{ID: 9, Active: false}, nil)

		_, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start})
		require.ErrorIs(t, err, ErrBusInactive)
		assert.Equal(t, domain.KindState, domain.KindOf(err))
	})

	t.Run("unknown bus", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.cat.On("GetBus", mock.Anything, int64(9)).Return(nil, repository.ErrNotFound)

		_, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start})
		require.ErrorIs(t, err, ErrNotFound)

		e, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "BusNotFound", e.Code())
	})

	t.Run("arrival before departure", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		early := start.Add(-time.Hour)

		_, err := svc.ScheduleTrip(ctx, TripInput{RouteID: 3, BusID: 9, ServiceDate: start, ArrivalAt: &early})
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestUpdateTrip(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 11, 2, 7, 30, 0, 0, time.UTC)
	status := func(s domain.TripStatus) *domain.TripStatus { return &s }

	t.Run("unknown status", func(t *testing.T) {
		svc, _, _, _ := newTestService()

		err := svc.UpdateTrip(ctx, 1, domain.TripPatch{Status: status("Delayed")})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("final trip only changes status", func(t *testing.T) {
		svc, st, ev, _ := newTestService()
		st.trips.On("GetTrip", mock.Anything, int64(1), true).
			Return(&domain.Trip{ID: 1, Status: domain.TripArrived, ServiceDate: start}, nil)

		later := start.Add(time.Hour)
		err := svc.UpdateTrip(ctx, 1, domain.TripPatch{ServiceDate: &later})
		require.ErrorIs(t, err, ErrTripFinal)
		assert.Equal(t, domain.KindState, domain.KindOf(err))
		assert.Empty(t, ev.got)

		p := domain.TripPatch{Status: status(domain.TripDeparted)}
		st.trips.On("UpdateTrip", mock.Anything, int64(1), p).Return(nil)

		require.NoError(t, svc.UpdateTrip(ctx, 1, p))
		assert.Equal(t, []tripEvent{{1, events.ReasonTripUpdated}}, ev.got)
	})

	t.Run("moving a trip rechecks the bus", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		later := start.Add(24 * time.Hour)
		st.trips.On("GetTrip", mock.Anything, int64(2), true).
			Return(&domain.Trip{ID: 2, RouteID: 3, BusID: 9, Status: domain.TripScheduled, ServiceDate: start}, nil)
		st.cat.On("GetRoute", mock.Anything, int64(3)).Return(&domain.Route{ID: 3, DefaultDuration: time.Hour}, nil)
		st.trips.On("BusBusy", mock.Anything, int64(9), later, later.Add(time.Hour), int64(2)).Return(true, nil)

		err := svc.UpdateTrip(ctx, 2, domain.TripPatch{ServiceDate: &later})
		require.ErrorIs(t, err, ErrBusDoubleBooked)
	})

	t.Run("cancelling through a patch checks tickets", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.trips.On("GetTrip", mock.Anything, int64(4), true).
			Return(&domain.Trip{ID: 4, Status: domain.TripScheduled, ServiceDate: start}, nil)
		st.trips.On("IssuedTickets", mock.Anything, int64(4)).Return(2, nil)

		err := svc.UpdateTrip(ctx, 4, domain.TripPatch{Status: status(domain.TripCancelled)})
		require.ErrorIs(t, err, ErrTripHasTickets)
		st.trips.AssertNotCalled(t, "UpdateTrip", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("refused while tickets are issued", func(t *testing.T) {
		svc, st, ev, _ := newTestService()
		st.trips.On("GetTrip", mock.Anything, int64(5), true).Return(&domain.Trip{ID: 5, Status: domain.TripScheduled}, nil)
		st.trips.On("IssuedTickets", mock.Anything, int64(5)).Return(3, nil)

		err := svc.CancelTrip(ctx, 5)
		require.ErrorIs(t, err, ErrTripHasTickets)

		e, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, 3, e.Details()["issued_tickets"])
		assert.Empty(t, ev.got)
	})

	t.Run("already cancelled", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.trips.On("GetTrip", mock.Anything, int64(6), true).Return(&domain.Trip{ID: 6, Status: domain.TripCancelled}, nil)

		require.ErrorIs(t, svc.CancelTrip(ctx, 6), ErrTripFinal)
	})

	t.Run("cancels and notifies", func(t *testing.T) {
		svc, st, ev, _ := newTestService()
		cancelled := domain.TripCancelled
		st.trips.On("GetTrip", mock.Anything, int64(7), true).Return(&domain.Trip{ID: 7, Status: domain.TripDeparted}, nil)
		st.trips.On("IssuedTickets", mock.Anything, int64(7)).Return(0, nil)
		st.trips.On("UpdateTrip", mock.Anything, int64(7), domain.TripPatch{Status: &cancelled}).Return(nil)

		require.NoError(t, svc.CancelTrip(ctx, 7))
		assert.Equal(t, []tripEvent{{7, events.ReasonTripCancelled}}, ev.got)
	})
}

func TestCreateRoute_WithPrice(t *testing.T) {
	svc, st, _, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC) }

	rt := domain.Route{
		DepartureStationID: 1,
		ArrivalStationID:   2,
		OperatorID:         4,
		DistanceKM:         310,
		DefaultDuration:    6 * time.Hour,
	}
	st.cat.On("CreateRoute", mock.Anything, rt).Return(int64(12), nil)

	var fare domain.Fare
	st.cat.On("CreateFare", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { fare = args.Get(1).(domain.Fare) }).
		Return(int64(30), nil)

	price := int64(250000)
	id, err := svc.CreateRoute(context.Background(), rt, &price)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	assert.Equal(t, int64(12), fare.RouteID)
	assert.Equal(t, "VND", fare.Currency)
	assert.Equal(t, "Standard", fare.SeatClass)
	assert.Equal(t, price, fare.SeatPrice)
	require.NotNil(t, fare.ValidFrom)
	require.NotNil(t, fare.ValidTo)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), *fare.ValidFrom)
	assert.Equal(t, time.Date(2027, 10, 18, 0, 0, 0, 0, time.UTC), *fare.ValidTo)
}

func TestCreateRoute_Validation(t *testing.T) {
	svc, st, _, _ := newTestService()

	_, err := svc.CreateRoute(context.Background(), domain.Route{
		DepartureStationID: 1,
		ArrivalStationID:   1,
		OperatorID:         4,
		DistanceKM:         10,
		DefaultDuration:    time.Hour,
	}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	st.cat.AssertNotCalled(t, "CreateRoute", mock.Anything, mock.Anything)
}

func TestCatalogErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("delete referenced station", func(t *testing.T) {
		svc, st, _, cs := newTestService()
		st.cat.On("DeleteStation", mock.Anything, int64(3)).Return(repository.ErrReferenced)

		err := svc.DeleteStation(ctx, 3)
		require.ErrorIs(t, err, ErrInUse)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		assert.Zero(t, cs.n)
	})

	t.Run("bus of unknown operator", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		b := domain.Bus{OperatorID: 99, PlateNumber: "51B-123.45", Capacity: 40, Active: true}
		st.cat.On("CreateBus", mock.Anything, b).Return(int64(0), repository.ErrReferenced)

		_, err := svc.CreateBus(ctx, b)
		require.ErrorIs(t, err, ErrUnknownReference)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("duplicate plate", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		b := domain.Bus{OperatorID: 1, PlateNumber: "51B-123.45", Capacity: 40}
		st.cat.On("CreateBus", mock.Anything, b).Return(int64(0), repository.ErrConflict)

		_, err := svc.CreateBus(ctx, b)
		require.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("empty patch", func(t *testing.T) {
		svc, st, _, _ := newTestService()
		st.cat.On("UpdateOperator", mock.Anything, int64(2), domain.OperatorPatch{}).Return(repository.ErrNoFields)

		err := svc.UpdateOperator(ctx, 2, domain.OperatorPatch{})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("station change drops the cache", func(t *testing.T) {
		svc, st, _, cs := newTestService()
		s := domain.Station{Name: "Mien Dong", City: "Ho Chi Minh", Active: true}
		st.cat.On("CreateStation", mock.Anything, s).Return(int64(8), nil)

		id, err := svc.CreateStation(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, int64(8), id)
		assert.Equal(t, 1, cs.n)
	})
}

func TestListBuses_Filter(t *testing.T) {
	svc, st, _, _ := newTestService()
	operatorID, active := int64(2), false
	f := domain.BusFilter{OperatorID: &operatorID, Active: &active}
	st.cat.On("ListBuses", mock.Anything, f).Return([]domain.Bus(nil), nil)

	out, err := svc.ListBuses(context.Background(), f)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	st.cat.AssertExpectations(t)
}
