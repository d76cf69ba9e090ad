package service

import (
	"log/slog"
	"time"

	postgres "github.com/kirinyoku/tix-bus/internal/repository/postgres"
	redis "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service/admin"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/kirinyoku/tix-bus/internal/service/booking"
	"github.com/kirinyoku/tix-bus/internal/service/eticket"
	"github.com/kirinyoku/tix-bus/internal/service/query"
)

type Services struct {
	Booking *booking.Service
	Query   *query.Service
	Admin   *admin.Service
	Auth    *auth.Service
	ETicket *eticket.Service
}

type Config struct {
	Booking    booking.Config
	Query      query.Config
	Tokens     *auth.Tokens
	BcryptCost int
	Location   *time.Location
}

// Events is what the services tell about committed changes.
// *events.Dispatcher implements it.
type Events interface {
	booking.EventSink
	admin.TripEvents
}

// NewServices wires every service onto one store. cache may be nil to run
// without Redis read caching.
func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	ev Events,
	log *slog.Logger,
	cfg Config,
) *Services {
	if cfg.Query.Location == nil {
		cfg.Query.Location = cfg.Location
	}

	q := query.New(store.Query(), cache, cfg.Query)

	var stations admin.StationCache
	if cache != nil {
		stations = cache
	}

	return &Services{
		Booking: booking.New(booking.NewPostgresStore(store), ev, log, cfg.Booking),
		Query:   q,
		Admin:   admin.New(admin.NewPostgresStore(store), ev, stations, log),
		Auth:    auth.New(store.Accounts(), cfg.Tokens, cfg.BcryptCost),
		ETicket: eticket.New(q, cfg.Location),
	}
}
