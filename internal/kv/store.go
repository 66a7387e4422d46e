// Package kv owns the shared key-value store handle. The client is
// constructed explicitly and injected into every component that needs it;
// there is no package-level singleton, so tests substitute their own client
// and replicas never share hidden state.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes the Redis connection.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store wraps the Redis client with an explicit connect/close lifecycle.
type Store struct {
	client *redis.Client
}

// Open dials Redis and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: ping failed: %w", err)
	}

	return &Store{client: client}, nil
}

// Client exposes the underlying handle for components built directly on
// redis.UniversalClient.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
