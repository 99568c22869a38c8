// Package quarantinecache mirrors per-class quarantine membership into
// Redis so multiple agent processes attached to the same JVM fleet
// (or a process restart) observe the same quarantine state instead of
// each starting with an empty in-memory history.
package quarantinecache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bytehot:quarantine:"

// Cache is a thin Redis-backed set of quarantined class names.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New wraps an existing Redis client. logger defaults to slog.Default
// when nil.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, logger: logger}
}

// NewFromAddr dials addr and verifies the connection with a Ping.
func NewFromAddr(ctx context.Context, addr string, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.New("quarantinecache: connect to " + addr + ": " + err.Error())
	}
	return New(client, logger), nil
}

// Mark records className as quarantined for ttl (the class's
// configured quarantine window).
func (c *Cache) Mark(ctx context.Context, className string, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+className, "1", ttl).Err(); err != nil {
		c.logger.Warn("quarantinecache: mark failed", "class", className, "error", err)
		return err
	}
	return nil
}

// IsQuarantined reports whether className is currently marked.
func (c *Cache) IsQuarantined(ctx context.Context, className string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+className).Result()
	if err != nil {
		c.logger.Warn("quarantinecache: exists check failed", "class", className, "error", err)
		return false, err
	}
	return n > 0, nil
}

// Clear removes className's quarantine mark (operator reset or expiry).
func (c *Cache) Clear(ctx context.Context, className string) error {
	if err := c.client.Del(ctx, keyPrefix+className).Err(); err != nil {
		c.logger.Warn("quarantinecache: clear failed", "class", className, "error", err)
		return err
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
