package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"decompapi/internal/config"
)

// RateLimit rejects clients that exceed cfg.Max requests per cfg.Window with
// 429 before the handler runs. Clients are keyed by IP; the limiter sets Retry-After.
func RateLimit(cfg config.RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			rid, _ := c.Locals(RequestIDLocalKey).(string)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "too many requests, please try again later",
				"code":       "RATE_LIMITED",
				"request_id": rid,
			})
		},
	})
}
