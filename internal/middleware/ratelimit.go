package middleware

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"ripple/internal/models"
)

// CheckRateLimit checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
// Rate limiting is disabled when APP_ENV is "test" or "development" so dev
// workflows are not throttled.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	switch env {
	case "test", "development":
		return true, nil
	}

	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		RedisErrors.WithLabelValues("rate_limit_incr").Inc()
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	if cnt > int64(limit) {
		return false, nil
	}
	return true, nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID (if set in c.Locals("userID")) otherwise by
// remote IP, and fails open when Redis is unavailable.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		if err != nil {
			log.Printf("WARNING: rate limiter unavailable for route %s (resource: %s): %v", c.Path(), resource, err)
			return c.Next()
		}

		if !allowed {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError())
		}

		return c.Next()
	}
}
