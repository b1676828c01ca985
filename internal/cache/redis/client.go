// Package redis carries automation events over Redis pub/sub and streams and
// provides the distributed lock that elects a single scanning replica.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen is the approximate stream length kept when none is
// configured.
const DefaultStreamMaxLen int64 = 10_000

// ClientConfig holds connection parameters and the key layout shared by the
// lock manager and signal bus.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool

	// KeyPrefix is prepended to lock and stream keys so several deployments
	// can share one Redis.
	KeyPrefix string
	// StreamMaxLen trims streams to roughly this many entries.
	StreamMaxLen int64
}

func (c ClientConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:       c.Addr,
		Password:   c.Password,
		DB:         c.DB,
		PoolSize:   c.PoolSize,
		MaxRetries: c.MaxRetries,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client is a connected go-redis client plus the key namespace.
type Client struct {
	rdb          *redis.Client
	prefix       string
	streamMaxLen int64
}

// New connects to Redis and fails fast when the server does not answer a
// PING.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(cfg.options())
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}

	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix, streamMaxLen: maxLen}, nil
}

func (c *Client) key(name string) string {
	return c.prefix + name
}

// Ping is the readiness probe for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
