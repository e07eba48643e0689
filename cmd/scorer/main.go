package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

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
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	asOfFlag := flag.String("as-of", "", "Evaluation date (YYYY-MM-DD, default today UTC)")
	workers := flag.Int("workers", cfg.Scoring.Workers, "Concurrent scoring workers")
	shards := flag.Int("shards", cfg.Scoring.Shards, "Aggregation shards")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	asOf, err := services.ParseAsOf(*asOfFlag, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -as-of: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("reliability-scorer", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[SCORER_START] Starting developer scoring run", logging.Fields{
		"version": version,
		"as_of":   asOf.Format("2006-01-02"),
		"workers": *workers,
		"shards":  *shards,
	})

	metricsCollector := metrics.NewCollector("reliability_scorer", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SCORER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	scoringService := services.NewScoringService(
		repository.NewProjectRepository(db, logger, metricsCollector),
		repository.NewDeveloperRepository(db, logger, metricsCollector),
		logger,
		metricsCollector,
		*workers,
		*shards,
	)

	summary, err := scoringService.Run(ctx, asOf)
	if err != nil {
		logger.Fatal(ctx, "[SCORER_ERROR] Scoring run failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SCORING COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:             %s\n", summary.RunID)
	fmt.Printf("As Of:              %s\n", summary.AsOf)
	fmt.Printf("Projects:           %d\n", summary.Projects)
	fmt.Printf("Developers:         %d\n", summary.Developers)
	fmt.Printf("Scored:             %d\n", summary.Scored)
	fmt.Printf("Unqualified:        %d\n", summary.Unqualified)
	fmt.Printf("Duration:           %v\n", summary.Duration)
}
