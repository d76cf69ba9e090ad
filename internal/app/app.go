package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-bus/internal/broker/rabbitmq"
	"github.com/kirinyoku/tix-bus/internal/config"
	"github.com/kirinyoku/tix-bus/internal/events"
	"github.com/kirinyoku/tix-bus/internal/postgres"
	"github.com/kirinyoku/tix-bus/internal/redis"
	postgresrepo "github.com/kirinyoku/tix-bus/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/kirinyoku/tix-bus/internal/service/booking"
	"github.com/kirinyoku/tix-bus/internal/service/query"
	httpgin "github.com/kirinyoku/tix-bus/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	hub        *events.Hub

	pool      *pgxpool.Pool
	rdb       *goredis.Client
	publisher *rabbitmq.Publisher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:              cfg.Postgres.DSN(),
		MaxConns:         cfg.Postgres.MaxConns,
		MinConns:         cfg.Postgres.MinConns,
		MaxConnLifetime:  cfg.Postgres.MaxConnLifetime,
		StatementTimeout: cfg.Postgres.StatementTimeout,
		AppName:          "busticket",
		ConnectAttempts:  cfg.Postgres.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:            cfg.Redis.Addr,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		Timeout:         cfg.Redis.Timeout,
		ConnectAttempts: cfg.Redis.ConnectAttempts,
	})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, pool: pgxPool, rdb: rdb}

	// Broker publishing is optional.
	var publisher events.Publisher
	if cfg.RabbitMQ.URL != "" {
		p, err := rabbitmq.New(ctx, rabbitmq.Config{URL: cfg.RabbitMQ.URL}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
		a.publisher = p
		publisher = p
	} else {
		logger.Warn("RABBITMQ_URL not set, booking events stay in-process")
	}

	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewTripsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "bookings", cfg.Booking.RateLimitPerMinute, time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Booking.IdempotencyTTL)

	dispatcher := events.NewDispatcher(cache, pubsub, publisher, logger)
	a.hub = events.NewHub(pubsub)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	services := service.NewServices(store, cache, dispatcher, logger, service.Config{
		Booking:    booking.Config{MaxSeatsPerBooking: cfg.Booking.MaxSeatsPerBooking},
		Query:      query.Config{SeatMapTTL: cfg.Booking.SeatMapTTL},
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Location:   cfg.Server.Location,
	})

	router := httpgin.NewRouter(httpgin.Deps{
		Booking:     services.Booking,
		Query:       services.Query,
		Admin:       services.Admin,
		Auth:        services.Auth,
		ETicket:     services.ETicket,
		Tokens:      tokens,
		Idempotency: idempotencyStore,
		Limiter:     limiter,
		Feed:        a.hub,
		CORSOrigins: cfg.Server.CORSOrigins,
		Ready: map[string]httpgin.ReadyCheck{
			"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, pgxPool) },
			"redis":    func(ctx context.Context) error { return redis.Ping(ctx, rdb) },
		},
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.httpServer.RegisterOnShutdown(a.hub.Close)

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Relays trip changes from every instance to local SSE subscribers.
	g.Go(func() error {
		if err := a.hub.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("trip change subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close rabbitmq publisher", "error", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
