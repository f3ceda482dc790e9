package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/TrackPoint/internal/app/service"
	"go.uber.org/zap"
)

const msgInvalidQuery = "Tham số truy vấn không hợp lệ."

// AdminDeps groups dependencies of the gated admin routes.
type AdminDeps struct {
	Logger    *zap.Logger
	Analytics service.AnalyticsService
	Gate      fiber.Handler
	AdminPage []byte
}

// AdminHandler serves the dashboard page and its data endpoints.
type AdminHandler struct {
	logger    *zap.Logger
	analytics service.AnalyticsService
	gate      fiber.Handler
	page      []byte
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		logger:    logger,
		analytics: deps.Analytics,
		gate:      deps.Gate,
		page:      deps.AdminPage,
	}
}

// Register wires admin routes onto the provided router. Every route sits behind the gate.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/admin", h.gate, h.Page)
	router.Get("/admin.html", h.gate, h.Page)

	api := router.Group("/api")
	{
		api.Get("/dashboard-stats", h.gate, h.DashboardStats)
		api.Get("/clicks", h.gate, h.ListClicks)
		api.Get("/my-ip", h.gate, h.MyIP)
	}
}

// Page serves the dashboard HTML.
func (h *AdminHandler) Page(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("html", "utf-8")
	return c.Send(h.page)
}

// DashboardStats handles GET /api/dashboard-stats
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.analytics.DashboardStats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgServerError})
	}
	return c.JSON(stats)
}

// ListClicks handles GET /api/clicks
func (h *AdminHandler) ListClicks(c *fiber.Ctx) error {
	page, err := h.analytics.ListClicks(c.UserContext(), service.ClickQuery{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", service.DefaultPageSize),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Location:  c.Query("location"),
	})
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgInvalidQuery})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgServerError})
	}
	return c.JSON(page)
}

// MyIP echoes how the server sees the caller, for checking proxy configuration.
func (h *AdminHandler) MyIP(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ip":     c.IP(),
		"ips":    c.IPs(),
		"xff":    c.Get(fiber.HeaderXForwardedFor),
		"realIp": c.Get("X-Real-Ip"),
	})
}
