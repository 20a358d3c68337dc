// Command picksyhost is the reference library host. It keeps the photo
// library in SQLite or PostgreSQL and serves the host protocol to Picksy
// windows over a websocket.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/picksy/desktop/internal/config"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/handlers"
	custommw "github.com/picksy/desktop/internal/middleware"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/repository"
	"github.com/picksy/desktop/internal/services"
)

const version = "0.4.0"

func main() {
	logger := observability.NewLogger("picksyhost", observability.ParseLevel(os.Getenv("LOG_LEVEL"))).
		WithFormat(observability.ParseFormat(os.Getenv("LOG_FORMAT")))

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.PrepareHost(); err != nil {
		logger.WithError(err).Error("failed to prepare import folder")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Initialize(ctx, observability.NewConfig("picksyhost", version).WithDevice(cfg.Host.DeviceName))
	if err != nil {
		logger.WithError(err).Warn("telemetry unavailable")
	}

	var (
		db      *sql.DB
		dialect repository.Dialect
	)
	if cfg.Host.UsePostgres() {
		logger.Info("using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.Host.DatabaseURL)
		dialect = repository.Postgres
	} else {
		logger.WithField("path", cfg.Host.DatabasePath).Info("using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.Host.DatabasePath)
		dialect = repository.SQLite
	}
	if err != nil {
		logger.WithError(err).Error("failed to initialize database")
		os.Exit(1)
	}
	traced, err := observability.NewTraceDB(db, dialect.System())
	if err != nil {
		logger.WithError(err).Error("failed to instrument database")
		os.Exit(1)
	}
	defer traced.Close()
	photoRepo := repository.NewPhotoRepository(traced, dialect)

	// Services
	hub := services.NewWebSocketHub(contract.PeerInfo{
		PeerKey:    "host:" + cfg.Host.DeviceName,
		DeviceName: cfg.Host.DeviceName,
		Metadata:   map[string]any{"version": version},
	})
	go hub.Run(ctx)

	exifService := services.NewEXIFService()
	importer := services.NewImporter(
		photoRepo,
		services.NewHashService(),
		services.NewThumbnailService(cfg.Host.ThumbnailSize),
		exifService,
		cfg.Host.AllowedExtensions,
	)
	libraryService := services.NewLibraryService(photoRepo, importer, exifService, hub, cfg.Host.ImportFolder)
	maintenance := services.NewMaintenanceService(photoRepo, libraryService, cfg.Host.MaintenanceInterval.Std())
	go maintenance.Run(ctx)

	// Handlers
	wsHandler := handlers.NewWebSocketHandler(ctx, hub, libraryService)
	healthHandler := handlers.NewHealthHandler(photoRepo, hub, version)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenance)

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.WithError(err).Warn("http metrics unavailable")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware())
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(cfg.Security))

	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/ws", wsHandler.HandleConnection)
	r.Route("/maintenance", func(r chi.Router) {
		r.Get("/", maintenanceHandler.GetStatus)
		r.Post("/run", maintenanceHandler.RunNow)
	})

	srv := &http.Server{
		Addr:        cfg.Host.ServerAddress,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"address":       cfg.Host.ServerAddress,
			"import_folder": cfg.Host.ImportFolder,
			"device":        cfg.Host.DeviceName,
		}).Info("picksy host starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}
	logger.Info("server stopped")
}
