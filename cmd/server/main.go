package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/TrackPoint/config"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	apprepository "github.com/sifan077/TrackPoint/internal/app/repository"
	appserver "github.com/sifan077/TrackPoint/internal/app/server"
	appservice "github.com/sifan077/TrackPoint/internal/app/service"
	"github.com/sifan077/TrackPoint/internal/http/middleware"
	"github.com/sifan077/TrackPoint/internal/infra/geo"
	"github.com/sifan077/TrackPoint/internal/infra/logger"
	infraNATS "github.com/sifan077/TrackPoint/internal/infra/nats"
	infraPrometheus "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	infraRedis "github.com/sifan077/TrackPoint/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	isDev := !cfg.Server.Production()
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       cfg.Server.LogLevel,
	})
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("trust_proxy", cfg.Server.TrustProxy),
		zap.Bool("sqlite", cfg.Database.SQLite()),
		zap.String("postgres_host", cfg.Database.Host),
		zap.Bool("redis", infraRedis.Enabled(cfg.Redis)),
		zap.Bool("nats", infraNATS.Enabled(cfg.NATS)),
	)

	cipher, err := privacy.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("ENCRYPTION_KEY must be 64 hex characters; generate one with `trackctl keygen`", zap.Error(err))
	}

	store, closeStore, err := apprepository.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer closeStore()

	if err := apprepository.Migrate(ctx, store); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database ready", zap.String("dialect", store.Dialect()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := infraPrometheus.NewMetrics(registry)

	registerLimiter, trackLimiter, closeLimiters := buildLimiters(ctx, cfg, log)
	defer closeLimiters()

	var notifier appservice.ClickNotifier
	if infraNATS.Enabled(cfg.NATS) {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer func() { _ = natsConn.Drain() }()
		if err := infraNATS.EnsureClickStream(js); err != nil {
			log.Fatal("Failed to prepare click stream", zap.Error(err))
		}
		notifier = appservice.NewClickPublisher(js)
		log.Info("Connected to NATS successfully", zap.String("stream", infraNATS.ClickStream))
	} else {
		log.Info("NATS not configured; click notifications disabled")
	}

	locator, closeLocator := buildLocator(cfg, log)
	defer closeLocator()

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	clickRepo := apprepository.NewClickEventRepository(store)
	regRepo := apprepository.NewRegistrationRepository(store)

	server := appserver.New(appserver.Dependencies{
		Logger:        log,
		Health:        store,
		Registrations: appservice.NewRegistrationService(regRepo, m, logger.Named(log, "registration")),
		Tracking: appservice.NewTrackingService(appservice.TrackingDeps{
			Repo:     clickRepo,
			Cipher:   cipher,
			Locator:  locator,
			Notifier: notifier,
			Metrics:  m,
			Logger:   logger.Named(log, "tracking"),
			IPSalt:   cfg.Security.IPHashSalt,
			UASalt:   cfg.Security.UAHashSalt,
		}),
		Analytics:       appservice.NewAnalyticsService(clickRepo, cipher, time.Local, logger.Named(log, "analytics")),
		Metrics:         m,
		RegisterLimiter: registerLimiter,
		TrackLimiter:    trackLimiter,
		Admin: middleware.AdminAuthConfig{
			Token:         cfg.Admin.Token,
			BasicUser:     cfg.Admin.BasicUser,
			BasicPassword: cfg.Admin.BasicPassword,
			CookieMaxAge:  cfg.Admin.CookieMaxAge(),
			SecureCookie:  !isDev,
		},
		TrustProxy: cfg.Server.TrustProxy,
		IPHashSalt: cfg.Security.IPHashSalt,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- server.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// buildLimiters prefers the shared Redis window and falls back to per-process buckets.
func buildLimiters(ctx context.Context, cfg *config.Config, log *zap.Logger) (middleware.Limiter, middleware.Limiter, func()) {
	rl := cfg.RateLimit

	if infraRedis.Enabled(cfg.Redis) {
		client, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err == nil {
			log.Info("Connected to Redis successfully", zap.String("addr", infraRedis.Addr(cfg.Redis)))
			return middleware.NewRedisLimiter(client, middleware.RedisKeyPrefix, rl.RegisterLimit, rl.RegisterWindow()),
				middleware.NewRedisLimiter(client, middleware.RedisKeyPrefix, rl.TrackLimit, rl.TrackWindow()),
				func() { _ = client.Close() }
		}
		log.Warn("Redis unavailable; using in-process rate limits", zap.Error(err))
	}

	register := middleware.NewMemoryLimiter(rl.RegisterLimit, rl.RegisterWindow())
	track := middleware.NewMemoryLimiter(rl.TrackLimit, rl.TrackWindow())
	return register, track, func() {
		register.Close()
		track.Close()
	}
}

// buildLocator prefers a local MaxMind database and falls back to the ipinfo.io API.
func buildLocator(cfg *config.Config, log *zap.Logger) (geo.Locator, func()) {
	if path := cfg.Geo.MaxMindDBPath; path != "" {
		mm, err := geo.OpenMaxMind(path, logger.Named(log, "geo"))
		if err == nil {
			log.Info("Using MaxMind database for geolocation", zap.String("path", path))
			return mm, func() { _ = mm.Close() }
		}
		log.Warn("MaxMind database unavailable", zap.String("path", path), zap.Error(err))
	}

	ipinfo := geo.NewIPInfo(geo.IPInfoOptions{
		Token:   cfg.Geo.IPInfoToken,
		BaseURL: cfg.Geo.IPInfoURL,
		Timeout: cfg.Geo.LookupTimeout(),
		Logger:  logger.Named(log, "geo"),
	})
	if !ipinfo.Configured() {
		log.Info("IPINFO_API_KEY not set; geolocation disabled")
		return geo.Nop{}, func() {}
	}
	return ipinfo, func() {}
}
