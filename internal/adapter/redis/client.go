// Package redis mirrors broadcast frames onto a Redis pub/sub channel so
// other consumers can follow the telemetry without a WebSocket.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/retry"
)

// DefaultConnectPolicy retries the initial PING for roughly half a minute.
var DefaultConnectPolicy = retry.Policy{
	MaxAttempts:    6,
	InitialBackoff: time.Second,
	MaxBackoff:     8 * time.Second,
}

// Client wraps a go-redis client.
type Client struct {
	rdb *goredis.Client
}

// NewClient parses redisURL (e.g. "redis://localhost:6379/0") and waits for
// the server to answer PING.
// Hooks, such as a MetricsHook, are installed before the first command.
func NewClient(ctx context.Context, redisURL string, policy retry.Policy, hooks ...goredis.Hook) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, apperrors.ConfigError("failed to parse redis URL", err)
	}

	rdb := goredis.NewClient(opts)
	for _, h := range hooks {
		rdb.AddHook(h)
	}

	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable, retrying", "addr", opts.Addr, "attempt", attempt, "backoff", backoff, "error", err)
	}
	err = retry.DoVoid(ctx, policy, retry.Always, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, apperrors.UpstreamError("redis unreachable", err).WithContext("addr", opts.Addr)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return &Client{rdb: rdb}, nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Ping verifies the Redis connection. Used as a readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw go-redis client.
func (c *Client) Underlying() *goredis.Client {
	return c.rdb
}
