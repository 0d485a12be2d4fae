// Package cache holds the Redis pieces of the marketplace: the standing
// cache, the digest sweep lock and the shared client they use.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"puzzlemarket/internal/middleware"
	"puzzlemarket/internal/observability"

	"github.com/redis/go-redis/v9"
)

// client backs the cache-aside helpers. Nil means caching is off.
var client *redis.Client

// instrumentHook times every command and pipeline.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(command string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, redis.Nil):
		result = "miss"
	case err != nil:
		result = "error"
	}
	observability.RedisCommands.WithLabelValues(command, result).Observe(time.Since(start).Seconds())
}

// NewClient builds an instrumented client. addr is host:port or a
// redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	c.AddHook(instrumentHook{})
	return c, nil
}

// InitRedis connects the shared client and returns it. Redis is optional:
// when it cannot be reached the shared client stays nil, the standing cache
// falls through to the database and InitRedis returns nil.
func InitRedis(ctx context.Context, addr string) *redis.Client {
	c, err := NewClient(addr)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "invalid REDIS_URL, continuing without cache", slog.String("error", err.Error()))
		client = nil
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "Redis unavailable, continuing without cache", slog.String("error", err.Error()))
		_ = c.Close()
		client = nil
		return nil
	}

	middleware.Logger.InfoContext(ctx, "Redis connected", slog.String("addr", c.Options().Addr))
	client = c
	return c
}

// SetClient replaces the shared client. Tests point it at miniredis.
func SetClient(c *redis.Client) {
	client = c
}
