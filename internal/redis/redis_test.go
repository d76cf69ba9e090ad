package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := Config{
		Addr:         "cache:6379",
		DB:           2,
		PoolSize:     50,
		MinIdleConns: 5,
		Timeout:      500 * time.Millisecond,
	}.options()

	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 50, opts.PoolSize)
	assert.Equal(t, 5, opts.MinIdleConns)
	assert.Equal(t, 500*time.Millisecond, opts.DialTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.WriteTimeout)
	assert.Equal(t, "busticket", opts.ClientName)
}

func TestOptions_ZeroKeepsLibraryDefaults(t *testing.T) {
	opts := Config{Addr: "localhost:6379"}.options()

	assert.Zero(t, opts.PoolSize)
	assert.Zero(t, opts.MinIdleConns)
	assert.Zero(t, opts.ReadTimeout)
}

func TestNew_GivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := New(ctx, Config{Addr: "localhost:6379", ConnectAttempts: 5, RetryDelay: time.Minute})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
