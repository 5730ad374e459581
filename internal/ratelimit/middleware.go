package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Middleware rejects requests with 429 once the caller's IP exceeds the limit.
// Limiter errors let the request through.
func Middleware(limiter RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		key := c.IP()
		if key == "" {
			key = "api"
		}

		allowed, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
