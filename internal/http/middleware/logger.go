package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	"github.com/sifan077/TrackPoint/internal/infra/logger"
	"go.uber.org/zap"
)

// Logger creates a logging middleware using zap. The client address is logged as its salted hash.
func Logger(log *zap.Logger, ipSalt string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		requestID := c.Locals("request_id")

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			logger.Since(start),
			logger.IPHash(privacy.Hash(privacy.NormalizeIP(c.IP()), ipSalt)),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		if rid, ok := requestID.(string); ok {
			fields = append(fields, zap.String("request_id", rid))
		}

		if err != nil {
			log.Error("request error", append(fields, zap.Error(err))...)
		} else {
			log.Info("request", fields...)
		}

		return err
	}
}
