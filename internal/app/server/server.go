package server

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/sifan077/TrackPoint/internal/app/service"
	inthttp "github.com/sifan077/TrackPoint/internal/http/handler"
	"github.com/sifan077/TrackPoint/internal/http/middleware"
	"github.com/sifan077/TrackPoint/internal/http/view"
	metrics "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs: services, limiters and gate settings.
type Dependencies struct {
	Logger        *zap.Logger
	Health        inthttp.HealthChecker
	Registrations service.RegistrationService
	Tracking      service.TrackingService
	Analytics     service.AnalyticsService
	Metrics       *metrics.Metrics

	RegisterLimiter middleware.Limiter
	TrackLimiter    middleware.Limiter

	Admin      middleware.AdminAuthConfig
	TrustProxy bool
	IPHashSalt string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	cfg := fiber.Config{
		AppName:               "trackpoint",
		DisableStartupMessage: true,
	}
	if deps.TrustProxy {
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
		cfg.EnableIPValidation = true
	}
	app := fiber.New(cfg)

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger.Named("http"), s.deps.IPHashSalt))
	s.app.Use(middleware.CORS())
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	inthttp.NewHealthHandler(s.deps.Health, log).Register(s.app)

	inthttp.NewPublicHandler(inthttp.PublicDeps{
		Logger:        log,
		Registrations: s.deps.Registrations,
		Tracking:      s.deps.Tracking,
		RegisterLimit: s.limit("register", middleware.MsgRegisterRateLimited, s.deps.RegisterLimiter),
		TrackLimit:    s.limit("track", middleware.MsgTrackRateLimited, s.deps.TrackLimiter),
	}).Register(s.app)

	inthttp.NewAdminHandler(inthttp.AdminDeps{
		Logger:    log,
		Analytics: s.deps.Analytics,
		Gate:      middleware.AdminAuth(s.deps.Admin, s.deps.Metrics, log.Named("admin")),
		AdminPage: view.AdminPage(),
	}).Register(s.app)

	// Static pages go last so explicit routes win. The dashboard file is only reachable through the gate.
	s.app.Use("/", filesystem.New(filesystem.Config{
		Root:   http.FS(view.StaticFS()),
		Index:  "index.html",
		MaxAge: 3600,
		Next: func(c *fiber.Ctx) bool {
			return view.IsAdminPath(c.Path())
		},
	}))
}

func (s *Server) limit(scope, message string, limiter middleware.Limiter) fiber.Handler {
	if limiter == nil {
		return nil
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Scope:   scope,
		Message: message,
		Limiter: limiter,
		Metrics: s.deps.Metrics,
	}, s.deps.Logger)
}
