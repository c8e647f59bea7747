package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/secureauth/sentinel/internal/auth"
	"github.com/secureauth/sentinel/internal/background"
	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/database"
	"github.com/secureauth/sentinel/internal/geo"
	"github.com/secureauth/sentinel/internal/handlers"
	middlewareCustom "github.com/secureauth/sentinel/internal/middleware"
	"github.com/secureauth/sentinel/internal/repositories"
	"github.com/secureauth/sentinel/internal/risk"
	"github.com/secureauth/sentinel/internal/routes"
	"github.com/secureauth/sentinel/internal/services"
	httputil "github.com/secureauth/sentinel/pkg/http"
	pkglogger "github.com/secureauth/sentinel/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, db.Pool, cfg.Database.MigrationsDir, logger); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Repositories
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	deviceRepo := repositories.NewTrustedDeviceRepository(db)
	alertRepo := repositories.NewSecurityAlertRepository(db)

	// Geo enrichment from local MaxMind databases. Without a City database
	// the service still runs; attempts score without location factors.
	var geoResolver geo.Resolver = geo.DisabledResolver{}
	if cfg.Geo.CityDBPath != "" {
		maxmind, err := geo.NewMaxMindResolver(cfg.Geo.CityDBPath, cfg.Geo.ASNDBPath, logger)
		if err != nil {
			logger.Error("failed to open GeoIP databases", slog.Any("error", err))
			os.Exit(1)
		}
		defer maxmind.Close()
		geoResolver = maxmind
	} else {
		logger.Warn("GEOIP_CITY_DB not set, geo enrichment disabled")
	}

	// Alert notification channel
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Notification.Enabled {
		sesNotifier, err := services.NewAWSSESNotifier(
			cfg.Notification.AWSRegion,
			cfg.Notification.FromAddress,
			cfg.Notification.ToAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	engine := risk.NewEngine(cfg.Risk)

	trustService := services.NewTrustService(deviceRepo, auditLogger, logger)
	alertService := services.NewAlertService(alertRepo, attemptRepo, notifier, cfg.Alerts, auditLogger, logger)
	loginService := services.NewLoginService(attemptRepo, trustService, alertService, geoResolver, engine, cfg.Risk, cfg.Geo, auditLogger, logger)
	aggregationService := services.NewAggregationService(attemptRepo, deviceRepo, alertRepo)

	// Handlers
	ipConfig := &httputil.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	attemptHandler := handlers.NewAttemptHandler(loginService, ipConfig, logger)
	securityHandler := handlers.NewSecurityHandler(aggregationService, trustService, alertService, logger)

	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	cleanupManager := background.NewCleanupManager(trustService, cfg.Cleanup, logger)

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, attemptHandler, securityHandler, verifier, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
