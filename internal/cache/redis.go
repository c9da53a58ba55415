// Package cache provides Redis-backed rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the Redis client.
type Options struct {
	PoolSize     int
	MinIdleConns int
	// KeyPrefix namespaces every key so several deployments can share a database.
	KeyPrefix string
}

// DefaultOptions returns the client settings used by the API server.
func DefaultOptions() Options {
	return Options{
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "notepad:",
	}
}

// Cache wraps a Redis client with the operations the API needs.
type Cache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New parses redisURL, connects and verifies the connection with a PING.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		ropts.PoolSize = opts.PoolSize
	}
	ropts.MinIdleConns = opts.MinIdleConns
	ropts.PoolTimeout = 4 * time.Second
	ropts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewFromClient(client, opts.KeyPrefix), nil
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *redis.Client, keyPrefix string) *Cache {
	return &Cache{client: client, prefix: keyPrefix, now: time.Now}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) key(parts ...string) string {
	k := c.prefix
	for _, p := range parts {
		k += p
	}
	return k
}
