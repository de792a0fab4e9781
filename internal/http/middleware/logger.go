package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"decompapi/internal/logging"
)

// LoggerWithWriter logs to w with timestamps rendered in loc.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return LoggerWithZap(logging.New(w, loc))
}

// LoggerWithZap logs requests through an existing zap logger.
func LoggerWithZap(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// Status after the error handler ran; a returned error means it has not yet.
		status := c.Response().StatusCode()
		if err != nil {
			status = statusFromError(err)
		}
		rid, _ := c.Locals(RequestIDLocalKey).(string)

		logger.Info("http_request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Float64("latency", float64(time.Since(start).Microseconds())/1000),
		)

		return err
	}
}

func statusFromError(err error) int {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
