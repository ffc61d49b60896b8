// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/hotel-backend/internal/admin"
	"github.com/carterperez-dev/templates/hotel-backend/internal/auth"
	"github.com/carterperez-dev/templates/hotel-backend/internal/config"
	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/health"
	"github.com/carterperez-dev/templates/hotel-backend/internal/identity"
	"github.com/carterperez-dev/templates/hotel-backend/internal/middleware"
	"github.com/carterperez-dev/templates/hotel-backend/internal/server"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

const (
	drainDelay     = 5 * time.Second
	reaperLeaseKey = "hotel:reaper:lease"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)
	core.ExposeErrorDetail(!cfg.IsProduction())

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	var (
		store user.Store
		db    *core.Database
	)
	deps := []health.Dependency{{Name: "redis", Checker: redis}}

	switch cfg.Storage.Driver {
	case "memory":
		store = user.NewMemoryStore()
		logger.Warn("using in-memory credential store; data is not persisted")
	default:
		db, err = core.NewDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		logger.Info("database connected",
			"max_open_conns", cfg.Database.MaxOpenConns,
			"max_idle_conns", cfg.Database.MaxIdleConns,
		)

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}

		store = user.NewPostgresStore(db.DB)
		deps = append(deps, health.Dependency{Name: "database", Checker: db})
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	var (
		provider identity.Client
		auth0    *identity.Auth0Client
	)
	if cfg.Features.ExternalIdentityEnabled {
		auth0, err = identity.NewAuth0Client(ctx, cfg.Identity, logger)
		if err != nil {
			return err
		}
		provider = auth0
		logger.Info("external identity provider enabled",
			"domain", cfg.Identity.Domain,
		)
	} else {
		logger.Info("external identity provider disabled")
	}

	verifier := auth.NewVerifier(jwtManager, provider, store, logger)
	orchestrator := auth.NewOrchestrator(
		store,
		provider,
		jwtManager,
		cfg.Identity.Timeout,
		logger,
	)

	scope, ok := user.ParseOrphanScope(cfg.Reaper.Scope)
	if !ok {
		scope = user.ScopeAnyUnlinked
	}
	reaper := auth.NewReaper(store, auth.ReaperOptions{
		Scope:       scope,
		Interval:    cfg.Reaper.Interval,
		GracePeriod: cfg.Reaper.GracePeriod,
		Lease:       auth.NewRedisLease(redis.Client, reaperLeaseKey, cfg.Reaper.LeaseTTL),
	}, logger)

	authSvc := auth.NewService(store, jwtManager, logger)
	authHandler := auth.NewHandler(orchestrator, authSvc, reaper)

	userSvc := user.NewService(store)
	userHandler := user.NewHandler(userSvc)

	healthHandler := health.NewHandler(deps...)

	adminCfg := admin.HandlerConfig{
		RedisStats:       redis.PoolStats,
		RedisPing:        redis.Ping,
		Reaper:           reaper,
		StorageDriver:    cfg.Storage.Driver,
		ExternalIdentity: provider != nil,
	}
	if db != nil {
		adminCfg.DBStats = db.Stats
		adminCfg.DBPing = db.Ping
	}
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(verifier)
	adminOnly := middleware.RequireRole(
		string(user.RoleAdmin),
		string(user.RoleSuperAdmin),
	)
	registrationLimit := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.RegistrationRequests,
				cfg.RateLimit.RegistrationBurst,
			),
			KeyFunc:  middleware.KeyByIPScoped("auth"),
			FailOpen: true,
		},
	).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, registrationLimit)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	if cfg.Reaper.Enabled {
		go reaper.Run(reaperCtx)
	} else {
		logger.Info("periodic orphan reaper disabled")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	stopReaper()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if auth0 != nil {
		auth0.Close()
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
