package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	"go.uber.org/zap"
)

// HealthChecker probes the store.
type HealthChecker interface {
	Health(ctx context.Context) (*repository.Health, error)
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	logger *zap.Logger
	store  HealthChecker
}

func NewHealthHandler(store HealthChecker, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, store: store}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/api/health", h.Health)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	health, err := h.store.Health(c.UserContext())
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
	}
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"database":    health.Database,
		"server_time": health.ServerTime,
		"pg_version":  health.Version,
	})
}
