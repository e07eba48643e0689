package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"reliability-platform/internal/config"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/services"
	"reliability-platform/pkg/database"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	out := flag.String("out", "-", "Output file for the dashboard JSON, - for stdout")
	limit := flag.Int("limit", services.DefaultExportLimit, "Number of top-scored developers to export")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("reliability-export", version, logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	metricsCollector := metrics.NewCollector("reliability_export", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[EXPORT_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	exportService := services.NewExportService(
		repository.NewDeveloperRepository(db, logger, metricsCollector),
		repository.NewProjectRepository(db, logger, metricsCollector),
		logger,
	)

	dashboard, err := exportService.BuildDashboard(ctx, *limit)
	if err != nil {
		logger.Fatal(ctx, "[EXPORT_ERROR] Failed to build dashboard", logging.Fields{}, err)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal(ctx, "[EXPORT_ERROR] Failed to create output file", logging.Fields{"path": *out}, err)
		}
		defer f.Close()
		w = f
	}

	if err := services.WriteDashboard(w, dashboard); err != nil {
		logger.Fatal(ctx, "[EXPORT_ERROR] Failed to write dashboard", logging.Fields{}, err)
	}

	logger.Info(ctx, "[EXPORT_COMPLETE] Dashboard exported", logging.Fields{
		"developers": len(dashboard.Developers),
		"out":        *out,
	})
}
