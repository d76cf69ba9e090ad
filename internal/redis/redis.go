package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// MinIdleConns keeps warm connections for the rate limiter and
	// idempotency lookups on the booking path.
	MinIdleConns int
	// Timeout bounds dialing and each read or write. Zero keeps the
	// go-redis defaults.
	Timeout time.Duration
	// ConnectAttempts is how often the first ping is tried while Redis is
	// still starting. Values below one mean a single try.
	ConnectAttempts int
	RetryDelay      time.Duration
}

func (c Config) options() *redis.Options {
	opts := &redis.Options{
		Addr:       c.Addr,
		Password:   c.Password,
		DB:         c.DB,
		ClientName: "busticket",
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.Timeout > 0 {
		opts.DialTimeout = c.Timeout
		opts.ReadTimeout = c.Timeout
		opts.WriteTimeout = c.Timeout
	}

	return opts
}

// New builds a client and waits until Redis answers a ping, retrying up to
// cfg.ConnectAttempts times.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redis.New"

	client := redis.NewClient(cfg.options())

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = Ping(ctx, client); err == nil {
			return client, nil
		}
		if attempt >= cfg.ConnectAttempts || !sleep(ctx, delay) {
			break
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("%s:%w", op, err)
}

// Ping checks the client can reach Redis within a short deadline.
func Ping(ctx context.Context, client *redis.Client) error {
	const op = "redis.Ping"

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
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
