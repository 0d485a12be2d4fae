package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a limiter does when Redis cannot answer.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// ErrLimiterUnavailable is returned by Take when no Redis client is wired.
var ErrLimiterUnavailable = errors.New("rate limit store unavailable")

// Limit is a fixed-window quota on one kind of write.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Quotas on conversation writes, counted per player.
var (
	StartConversationLimit  = Limit{Name: "start_conversation", Max: 10, Window: time.Minute}
	PostMessageLimit        = Limit{Name: "send_message", Max: 30, Window: time.Minute}
	ReportConversationLimit = Limit{Name: "report_conversation", Max: 5, Window: 10 * time.Minute}
)

// limitsEnforced is false in test, development and stress environments so
// local and load test workflows are not throttled.
func limitsEnforced() bool {
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "", "test", "development", "stress":
		return false
	}
	return true
}

// Take counts one request by subject against l. It reports whether the
// request fits and how many remain in the current window.
func Take(ctx context.Context, rdb *redis.Client, l Limit, subject string) (allowed bool, remaining int, err error) {
	if !limitsEnforced() {
		return true, l.Max, nil
	}
	if rdb == nil {
		return false, 0, ErrLimiterUnavailable
	}

	key := fmt.Sprintf("rl:%s:%s", l.Name, subject)
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, l.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	return count <= int64(l.Max), max(l.Max-int(count), 0), nil
}

// RateLimit enforces l per authenticated player, or per client IP on
// anonymous routes.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		subject := "ip:" + c.IP()
		if id, ok := PlayerID(c); ok {
			subject = fmt.Sprintf("player:%d", id)
		}

		allowed, remaining, err := Take(ctx, rdb, l, subject)
		if err != nil {
			if l.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit fail-closed",
				slog.String("limit", l.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Rate limiting temporarily unavailable",
				"code":  "RATE_LIMIT_UNAVAILABLE",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(l.Window/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please slow down",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
