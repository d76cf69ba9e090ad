package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Auth     AuthConfig
	Booking  BookingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// Location is the zone service dates are entered and printed in.
	Location *time.Location
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
	MinConns int32

	MaxConnLifetime  time.Duration
	StatementTimeout time.Duration
	ConnectAttempts  int
}

// DSN renders the connection URL pgxpool expects.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration

	ConnectAttempts int
}

// RabbitMQConfig is optional; an empty URL disables event publishing.
type RabbitMQConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type BookingConfig struct {
	MaxSeatsPerBooking int
	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
	SeatMapTTL         time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	shutdownTimeout, err := durationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	loc, err := time.LoadLocation(envOr("APP_TIMEZONE", "Asia/Ho_Chi_Minh"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid APP_TIMEZONE: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host:            envOr("SERVER_HOST", "localhost"),
		Port:            serverPort,
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     listEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
		Location:        loc,
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	maxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	minConns, err := intEnv("POSTGRES_MIN_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	connLifetime, err := durationEnv("POSTGRES_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	statementTimeout, err := durationEnv("POSTGRES_STATEMENT_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	connectAttempts, err := intEnv("DB_CONNECT_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresCfg := PostgresConfig{
		User:             os.Getenv("POSTGRES_USER"),
		Password:         os.Getenv("POSTGRES_PASSWORD"),
		Name:             os.Getenv("POSTGRES_DB"),
		Host:             envOr("POSTGRES_HOST", "localhost"),
		Port:             postgresPort,
		SSLMode:          envOr("POSTGRES_SSLMODE", "disable"),
		MaxConns:         int32(maxConns),
		MinConns:         int32(minConns),
		MaxConnLifetime:  connLifetime,
		StatementTimeout: statementTimeout,
		ConnectAttempts:  connectAttempts,
	}

	switch {
	case postgresCfg.User == "":
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	case postgresCfg.Password == "":
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	case postgresCfg.Name == "":
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisPoolSize, err := intEnv("REDIS_POOL_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisMinIdle, err := intEnv("REDIS_MIN_IDLE_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisTimeout, err := durationEnv("REDIS_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:            envOr("REDIS_ADDR", "localhost:6379"),
		Password:        os.Getenv("REDIS_PASSWORD"),
		DB:              redisDB,
		PoolSize:        redisPoolSize,
		MinIdleConns:    redisMinIdle,
		Timeout:         redisTimeout,
		ConnectAttempts: connectAttempts,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	tokenTTL, err := durationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	bcryptCost, err := intEnv("BCRYPT_COST", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	maxSeats, err := intEnv("BOOKING_MAX_SEATS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if maxSeats <= 0 {
		return nil, fmt.Errorf("%s: BOOKING_MAX_SEATS must be positive", op)
	}

	rateLimit, err := intEnv("BOOKING_RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	idemTTL, err := durationEnv("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	seatMapTTL, err := durationEnv("SEATMAP_CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		RabbitMQ: RabbitMQConfig{URL: os.Getenv("RABBITMQ_URL")},
		Auth: AuthConfig{
			JWTSecret:  jwtSecret,
			TokenTTL:   tokenTTL,
			BcryptCost: bcryptCost,
		},
		Booking: BookingConfig{
			MaxSeatsPerBooking: maxSeats,
			RateLimitPerMinute: rateLimit,
			IdempotencyTTL:     idemTTL,
			SeatMapTTL:         seatMapTTL,
		},
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func listEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
