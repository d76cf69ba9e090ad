package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 3 * time.Second

type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
	// MaxConnLifetime recycles connections so failovers and pgbouncer
	// restarts are picked up. Zero keeps the pgxpool default.
	MaxConnLifetime time.Duration
	// StatementTimeout is sent as statement_timeout on every connection.
	// Zero leaves the server setting alone.
	StatementTimeout time.Duration
	// AppName is reported to the server as application_name.
	AppName string
	// ConnectAttempts is how often the first ping is tried while the
	// database is still starting. Values below one mean a single try.
	ConnectAttempts int
	RetryDelay      time.Duration
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, err
	}

	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 && c.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = c.MaxConnLifetime
	}

	params := poolCfg.ConnConfig.RuntimeParams
	if c.AppName != "" {
		params["application_name"] = c.AppName
	}
	if c.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	return poolCfg, nil
}

// New opens a connection pool and waits until the database answers a ping,
// retrying up to cfg.ConnectAttempts times.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "postgres.New"

	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; ; attempt++ {
		if err = Ping(ctx, pool); err == nil {
			return pool, nil
		}
		if attempt >= cfg.ConnectAttempts || !sleep(ctx, delay) {
			break
		}
	}

	pool.Close()
	return nil, fmt.Errorf("%s:%w", op, err)
}

// Ping checks the pool can reach the database within a short deadline.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	const op = "postgres.Ping"

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
