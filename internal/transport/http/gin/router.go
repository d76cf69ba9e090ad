package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service/admin"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/kirinyoku/tix-bus/internal/service/booking"
	"github.com/kirinyoku/tix-bus/internal/service/query"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req booking.Request) (*booking.Result, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.BookingWithTickets, error)
	RefundTicket(ctx context.Context, ticketID uuid.UUID) (*booking.TicketResult, error)
	CancelTicket(ctx context.Context, ticketID uuid.UUID) (*booking.TicketResult, error)
	UseTicket(ctx context.Context, ticketID uuid.UUID) (*booking.TicketResult, error)
}

type QueryService interface {
	TripSeatMap(ctx context.Context, tripID int64) (*domain.TripSeatMap, error)
	ActiveStations(ctx context.Context) ([]domain.Station, error)
	Schedule(ctx context.Context, q query.ScheduleQuery) ([]domain.ScheduledTrip, error)
	TripDetail(ctx context.Context, tripID int64) (*domain.TripDetail, error)
	LookupTicket(ctx context.Context, serial int64, phone string) (*domain.TicketDetails, error)
	Ticket(ctx context.Context, p auth.Principal, ticketID uuid.UUID) (*domain.TicketDetails, error)
	AccountTickets(ctx context.Context, accountID int64) ([]domain.TicketDetails, error)
}

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Account(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, role *domain.Role) ([]domain.Account, error)
}

type ETicketService interface {
	Render(ctx context.Context, p auth.Principal, ticketID uuid.UUID) ([]byte, string, error)
}

type AdminService interface {
	CreateStation(ctx context.Context, st domain.Station) (int64, error)
	ListStations(ctx context.Context) ([]domain.Station, error)
	UpdateStation(ctx context.Context, id int64, p domain.StationPatch) error
	DeleteStation(ctx context.Context, id int64) error

	CreateOperator(ctx context.Context, o domain.Operator) (int64, error)
	ListOperators(ctx context.Context) ([]domain.Operator, error)
	UpdateOperator(ctx context.Context, id int64, p domain.OperatorPatch) error
	DeleteOperator(ctx context.Context, id int64) error

	CreateBus(ctx context.Context, b domain.Bus) (int64, error)
	ListBuses(ctx context.Context, f domain.BusFilter) ([]domain.Bus, error)
	UpdateBus(ctx context.Context, id int64, p domain.BusPatch) error
	DeleteBus(ctx context.Context, id int64) error

	CreateRoute(ctx context.Context, rt domain.Route, price *int64) (int64, error)
	GetRoute(ctx context.Context, id int64) (*domain.Route, error)
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	UpdateRoute(ctx context.Context, id int64, p domain.RoutePatch) error
	DeleteRoute(ctx context.Context, id int64) error

	CreateFare(ctx context.Context, f domain.Fare) (int64, error)
	ListFares(ctx context.Context, routeID int64) ([]domain.Fare, error)

	ScheduleTrip(ctx context.Context, in admin.TripInput) (int64, error)
	GetTrip(ctx context.Context, id int64) (*domain.Trip, error)
	ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error)
	UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error
	CancelTrip(ctx context.Context, id int64) error
}

// Idempotency stores responses of writes keyed by Idempotency-Key.
// *redisrepo.IdempotencyStore implements it.
type Idempotency interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	GetResult(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key string) error
}

// TripFeed hands out live change notifications per trip. *events.Hub
// implements it.
type TripFeed interface {
	Subscribe(tripID int64) (<-chan redisrepo.TripChanged, func())
}

// ReadyCheck reports whether a backing service can take traffic.
type ReadyCheck func(ctx context.Context) error

// Deps are the collaborators of the HTTP API. Idempotency, Limiter, Feed and
// Ready are optional.
type Deps struct {
	Booking     BookingService
	Query       QueryService
	Admin       AdminService
	Auth        AuthService
	ETicket     ETicketService
	Tokens      TokenParser
	Idempotency Idempotency
	Limiter     RateLimiter
	Feed        TripFeed
	CORSOrigins []string
	Ready       map[string]ReadyCheck
}

func NewRouter(d Deps, logger *slog.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	registerValidators()

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS(d.CORSOrigins))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", handleReady(d.Ready))

	api := r.Group("/api")

	api.POST("/auth/register", handleRegister(d.Auth))
	api.POST("/auth/login", handleLogin(d.Auth))

	api.GET("/schedule/stations", handleStations(d.Query))
	api.GET("/schedule/trips", handleSchedule(d.Query))
	api.GET("/schedule/trips/:id", handleTripDetail(d.Query))
	api.GET("/trips/:id/seats", handleSeatMap(d.Query))
	if d.Feed != nil {
		api.GET("/trips/:id/events", handleTripEvents(d.Feed))
	}
	api.POST("/tickets/lookup", handleLookupTicket(d.Query))

	authed := api.Group("", Authn(d.Tokens))
	{
		create := []gin.HandlerFunc{}
		if d.Limiter != nil {
			create = append(create, RateLimit(d.Limiter))
		}
		create = append(create, handleCreateBooking(d.Booking, d.Idempotency))

		authed.POST("/bookings", create...)
		authed.GET("/bookings/:id", handleGetBooking(d.Booking))
		authed.POST("/tickets/:id/refund", handleRefundTicket(d.Booking, d.Query))
		authed.GET("/tickets/:id/eticket", handleETicket(d.ETicket))
		authed.GET("/me", handleMe(d.Auth))
		authed.GET("/me/tickets", handleMyTickets(d.Query))

		staff := authed.Group("", RequireRole(domain.RoleStaff, domain.RoleAdmin))
		staff.POST("/tickets/:id/cancel", handleTicketTransition(d.Booking.CancelTicket))
		staff.POST("/tickets/:id/use", handleTicketTransition(d.Booking.UseTicket))
	}

	adm := api.Group("/admin", Authn(d.Tokens), RequireRole(domain.RoleAdmin))
	{
		adm.GET("/accounts", handleListAccounts(d.Auth))
		adm.POST("/accounts", handleCreateAccount(d.Auth))
		adm.GET("/accounts/:id", handleGetAccount(d.Auth))

		adm.GET("/stations", handleListStations(d.Admin))
		adm.POST("/stations", handleCreateStation(d.Admin))
		adm.PATCH("/stations/:id", handlePatch(d.Admin.UpdateStation))
		adm.DELETE("/stations/:id", handleDelete(d.Admin.DeleteStation))

		adm.GET("/operators", handleListOperators(d.Admin))
		adm.POST("/operators", handleCreateOperator(d.Admin))
		adm.PATCH("/operators/:id", handlePatch(d.Admin.UpdateOperator))
		adm.DELETE("/operators/:id", handleDelete(d.Admin.DeleteOperator))

		adm.GET("/buses", handleListBuses(d.Admin))
		adm.POST("/buses", handleCreateBus(d.Admin))
		adm.PATCH("/buses/:id", handlePatch(d.Admin.UpdateBus))
		adm.DELETE("/buses/:id", handleDelete(d.Admin.DeleteBus))

		adm.GET("/routes", handleListRoutes(d.Admin))
		adm.POST("/routes", handleCreateRoute(d.Admin))
		adm.GET("/routes/:id", handleGetRoute(d.Admin))
		adm.PATCH("/routes/:id", handlePatch(d.Admin.UpdateRoute))
		adm.DELETE("/routes/:id", handleDelete(d.Admin.DeleteRoute))
		adm.GET("/routes/:id/fares", handleListFares(d.Admin))
		adm.POST("/fares", handleCreateFare(d.Admin))

		adm.GET("/trips", handleListTrips(d.Admin))
		adm.POST("/trips", handleScheduleTrip(d.Admin))
		adm.GET("/trips/:id", handleGetTrip(d.Admin))
		adm.PATCH("/trips/:id", handlePatch(d.Admin.UpdateTrip))
		adm.POST("/trips/:id/cancel", handleCancelTrip(d.Admin))
	}

	return r
}
