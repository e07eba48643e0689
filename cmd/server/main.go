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

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reliability-platform/internal/config"
	"reliability-platform/internal/handlers"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/services"
	"reliability-platform/pkg/database"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

const version = "1.0.0"

// recoveryLogger routes gorilla/handlers panic reports into the structured log
type recoveryLogger struct {
	logger *logging.StructuredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(context.Background(), "[API_PANIC] Handler panicked", logging.Fields{
		"detail": fmt.Sprint(v...),
	}, nil)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("reliability-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting developer reliability API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("reliability_api", prometheus.DefaultRegisterer)

	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	developerRepo := repository.NewDeveloperRepository(db, logger, metricsCollector)
	projectRepo := repository.NewProjectRepository(db, logger, metricsCollector)

	developerService := services.NewDeveloperService(developerRepo, projectRepo, logger)
	statsService := services.NewStatisticsService(developerRepo, projectRepo, logger, metricsCollector)

	developerHandler := handlers.NewDeveloperHandler(developerService, statsService, db, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.Instrument(metricsCollector))
	developerHandler.RegisterRoutes(router, handlers.APIKeyAuth(cfg.Auth.APIKeys, logger, metricsCollector))
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.Server.CORSAllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{handlers.APIKeyHeader, handlers.RequestIDHeader, "Content-Type"}),
	)(handler)
	handler = gorillahandlers.LoggingHandler(os.Stderr, handler)
	handler = gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{logger: logger}),
	)(handler)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
