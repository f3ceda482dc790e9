package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/TrackPoint/internal/app/service"
	"go.uber.org/zap"
)

const (
	msgMissingFields = "Vui lòng điền đầy đủ thông tin."
	msgServerError   = "Lỗi server."
	msgBadPayload    = "Dữ liệu không hợp lệ."
	msgClickRecorded = "Đã ghi nhận click thành công."

	successPage = "/success.html"
)

// PublicDeps groups dependencies of the unauthenticated write endpoints.
type PublicDeps struct {
	Logger        *zap.Logger
	Registrations service.RegistrationService
	Tracking      service.TrackingService
	RegisterLimit fiber.Handler
	TrackLimit    fiber.Handler
}

// PublicHandler serves registration and click tracking.
type PublicHandler struct {
	logger        *zap.Logger
	registrations service.RegistrationService
	tracking      service.TrackingService
	registerLimit fiber.Handler
	trackLimit    fiber.Handler
}

func NewPublicHandler(deps PublicDeps) *PublicHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandler{
		logger:        logger,
		registrations: deps.Registrations,
		tracking:      deps.Tracking,
		registerLimit: orPassthrough(deps.RegisterLimit),
		trackLimit:    orPassthrough(deps.TrackLimit),
	}
}

// Register wires public routes onto the provided router.
func (h *PublicHandler) Register(router fiber.Router) {
	router.Post("/register", h.registerLimit, h.CreateRegistration)
	router.Post("/track-click", h.trackLimit, h.TrackClick)
}

// CreateRegistration handles POST /register
func (h *PublicHandler) CreateRegistration(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingFields})
	}

	reg, err := h.registrations.Register(c.UserContext(), service.RegistrationInput{
		Email:       req.Email,
		Phone:       req.Phone,
		FullName:    req.FullName,
		DOB:         req.DOB,
		Plate:       req.Plate,
		VehicleType: req.VehicleType,
	})
	switch {
	case errors.Is(err, service.ErrInvalidRegistration):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingFields})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgServerError})
	}

	if wantsJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "id": reg.ID})
	}
	return c.Redirect(successPage, fiber.StatusFound)
}

// TrackClick handles POST /track-click
func (h *PublicHandler) TrackClick(c *fiber.Ctx) error {
	req, err := decodeTrackClick(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": msgBadPayload})
	}

	res, err := h.tracking.Record(c.UserContext(), service.TrackInput{
		RegistrationID: req.RegistrationID.ptr(),
		Latitude:       req.Latitude.ptr(),
		Longitude:      req.Longitude.ptr(),
		Accuracy:       req.Accuracy.ptr(),
		Consent:        bool(req.ConsentGiven),
		ElementID:      req.ElementID,
		ElementType:    req.ElementType,
		PageURL:        req.PageURL,
		ClientIP:       c.IP(),
		UserAgent:      c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": msgServerError})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": msgClickRecorded,
		"id":      res.ID,
		"geo":     res.Geo,
	})
}

// wantsJSON is true for JSON submissions and for clients that name JSON explicitly in Accept.
func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		return true
	}
	return strings.Contains(strings.ToLower(c.Get(fiber.HeaderAccept)), fiber.MIMEApplicationJSON)
}

func orPassthrough(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
