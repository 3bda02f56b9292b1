package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultRetryDelay = time.Second
)

// Config holds the connection settings shared by the revocation cache and the
// broker. Both ride on the same client.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
	// Attempts is how many pings are tried before giving up. Zero means one.
	Attempts int
}

// Connect builds a client and pings it until it answers or the attempts run
// out. The client is closed on failure.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, fmt.Errorf("redis ping: %w", ctx.Err())
			case <-time.After(defaultRetryDelay):
			}
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis ping %s after %d attempt(s): %w", cfg.Addr, attempts, err)
}
