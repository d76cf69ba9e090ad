package httpgin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service/admin"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/kirinyoku/tix-bus/internal/service/booking"
	"github.com/kirinyoku/tix-bus/internal/service/query"
	"github.com/stretchr/testify/mock"
)

// ptrArg returns the first result as *T, or nil when the mock returned nil.
func ptrArg[T any](args mock.Arguments, i int) *T {
	v, _ := args.Get(i).(*T)
	return v
}

func sliceArg[T any](args mock.Arguments, i int) []T {
	v, _ := args.Get(i).([]T)
	return v
}

type MockBooking struct{ mock.Mock }

func (m *MockBooking) CreateBooking(ctx context.Context, req booking.Request) (*booking.Result, error) {
	args := m.Called(ctx, req)
	return ptrArg[booking.Result](args, 0), args.Error(1)
}

func (m *MockBooking) GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithTickets, error) {
	args := m.Called(ctx, id)
	return ptrArg[domain.BookingWithTickets](args, 0), args.Error(1)
}

func (m *MockBooking) RefundTicket(ctx context.Context, id uuid.UUID) (*booking.TicketResult, error) {
	args := m.Called(ctx, id)
	return ptrArg[booking.TicketResult](args, 0), args.Error(1)
}

func (m *MockBooking) CancelTicket(ctx context.Context, id uuid.UUID) (*booking.TicketResult, error) {
	args := m.Called(ctx, id)
	return ptrArg[booking.TicketResult](args, 0), args.Error(1)
}

func (m *MockBooking) UseTicket(ctx context.Context, id uuid.UUID) (*booking.TicketResult, error) {
	args := m.Called(ctx, id)
	return ptrArg[booking.TicketResult](args, 0), args.Error(1)
}

type MockQuery struct{ mock.Mock }

func (m *MockQuery) TripSeatMap(ctx context.Context, tripID int64) (*domain.TripSeatMap, error) {
	args := m.Called(ctx, tripID)
	return ptrArg[domain.TripSeatMap](args, 0), args.Error(1)
}

func (m *MockQuery) ActiveStations(ctx context.Context) ([]domain.Station, error) {
	args := m.Called(ctx)
	return sliceArg[domain.Station](args, 0), args.Error(1)
}

func (m *MockQuery) Schedule(ctx context.Context, q query.ScheduleQuery) ([]domain.ScheduledTrip, error) {
	args := m.Called(ctx, q)
	return sliceArg[domain.ScheduledTrip](args, 0), args.Error(1)
}

func (m *MockQuery) TripDetail(ctx context.Context, tripID int64) (*domain.TripDetail, error) {
	args := m.Called(ctx, tripID)
	return ptrArg[domain.TripDetail](args, 0), args.Error(1)
}

func (m *MockQuery) LookupTicket(ctx context.Context, serial int64, phone string) (*domain.TicketDetails, error) {
	args := m.Called(ctx, serial, phone)
	return ptrArg[domain.TicketDetails](args, 0), args.Error(1)
}

func (m *MockQuery) Ticket(ctx context.Context, p auth.Principal, id uuid.UUID) (*domain.TicketDetails, error) {
	args := m.Called(ctx, p, id)
	return ptrArg[domain.TicketDetails](args, 0), args.Error(1)
}

func (m *MockQuery) AccountTickets(ctx context.Context, accountID int64) ([]domain.TicketDetails, error) {
	args := m.Called(ctx, accountID)
	return sliceArg[domain.TicketDetails](args, 0), args.Error(1)
}

type MockAuth struct{ mock.Mock }

func (m *MockAuth) Register(ctx context.Context, in auth.RegisterInput) (*domain.Account, error) {
	args := m.Called(ctx, in)
	return ptrArg[domain.Account](args, 0), args.Error(1)
}

func (m *MockAuth) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	return ptrArg[auth.Session](args, 0), args.Error(1)
}

func (m *MockAuth) Account(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	return ptrArg[domain.Account](args, 0), args.Error(1)
}

func (m *MockAuth) ListAccounts(ctx context.Context, role *domain.Role) ([]domain.Account, error) {
	args := m.Called(ctx, role)
	return sliceArg[domain.Account](args, 0), args.Error(1)
}

type MockETicket struct{ mock.Mock }

func (m *MockETicket) Render(ctx context.Context, p auth.Principal, id uuid.UUID) ([]byte, string, error) {
	args := m.Called(ctx, p, id)
	b, _ := args.Get(0).([]byte)
	return b, args.String(1), args.Error(2)
}

type MockAdmin struct{ mock.Mock }

func (m *MockAdmin) CreateStation(ctx context.Context, st domain.Station) (int64, error) {
	args := m.Called(ctx, st)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) ListStations(ctx context.Context) ([]domain.Station, error) {
	args := m.Called(ctx)
	return sliceArg[domain.Station](args, 0), args.Error(1)
}

func (m *MockAdmin) UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockAdmin) DeleteStation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdmin) CreateOperator(ctx context.Context, o domain.Operator) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) ListOperators(ctx context.Context) ([]domain.Operator, error) {
	args := m.Called(ctx)
	return sliceArg[domain.Operator](args, 0), args.Error(1)
}

func (m *MockAdmin) UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockAdmin) DeleteOperator(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdmin) CreateBus(ctx context.Context, b domain.Bus) (int64, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error) {
	args := m.Called(ctx, f)
	return sliceArg[domain.Bus](args, 0), args.Error(1)
}

func (m *MockAdmin) UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockAdmin) DeleteBus(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdmin) CreateRoute(ctx context.Context, rt domain.Route, price *int64) (int64, error) {
	args := m.Called(ctx, rt, price)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	args := m.Called(ctx, id)
	return ptrArg[domain.Route](args, 0), args.Error(1)
}

func (m *MockAdmin) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	args := m.Called(ctx)
	return sliceArg[domain.Route](args, 0), args.Error(1)
}

func (m *MockAdmin) UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockAdmin) DeleteRoute(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdmin) CreateFare(ctx context.Context, f domain.Fare) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error) {
	args := m.Called(ctx, routeID)
	return sliceArg[domain.Fare](args, 0), args.Error(1)
}

func (m *MockAdmin) ScheduleTrip(ctx context.Context, in admin.TripInput) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdmin) GetTrip(ctx context.Context, id int64) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	return ptrArg[domain.Trip](args, 0), args.Error(1)
}

func (m *MockAdmin) ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error) {
	args := m.Called(ctx, routeID)
	return sliceArg[domain.Trip](args, 0), args.Error(1)
}

func (m *MockAdmin) UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error {
	return m.Called(ctx, id, p).Error(0)
}

func (m *MockAdmin) CancelTrip(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockIdempotency struct{ mock.Mock }

func (m *MockIdempotency) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotency) SaveResult(ctx context.Context, key, payload string) error {
	return m.Called(ctx, key, payload).Error(0)
}

func (m *MockIdempotency) GetResult(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockIdempotency) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockLimiter struct{ mock.Mock }

func (m *MockLimiter) Allow(ctx context.Context, subject string) (redisrepo.Decision, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).(redisrepo.Decision), args.Error(1)
}
