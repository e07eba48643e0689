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

	sourcePath := flag.String("source", cfg.Source.Path, "Path to the upstream interconnection queue SQLite database")
	batchSize := flag.Int("batch-size", 1000, "Number of project rows copied per batch")
	score := flag.Bool("score", false, "Run a scoring pass after the projects are loaded")
	asOfFlag := flag.String("as-of", "", "Evaluation date for the scoring pass (YYYY-MM-DD, default today UTC)")
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

	logger := logging.NewStructuredLogger("reliability-ingester", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting interconnection queue ingestion", logging.Fields{
		"version":    version,
		"source":     *sourcePath,
		"batch_size": *batchSize,
		"score":      *score,
	})

	metricsCollector := metrics.NewCollector("reliability_ingester", prometheus.NewRegistry())

	source, err := database.OpenSQLite(ctx, *sourcePath)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to open source database", logging.Fields{
			"source": *sourcePath,
		}, err)
	}
	defer source.Close()

	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	projectRepo := repository.NewProjectRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(projectRepo, logger, metricsCollector)

	result, err := ingestionService.IngestSource(ctx, repository.NewSQLiteSource(source), *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rows Read:          %d\n", result.RowsRead)
	fmt.Printf("Projects Loaded:    %d\n", result.Loaded)
	fmt.Printf("Unattributed:       %d\n", result.Unattributed)
	fmt.Printf("Flagged:            %d\n", result.Flagged)
	fmt.Printf("Duplicates:         %d\n", result.Duplicates)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}

	if *score {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("SCORING DEVELOPERS")
		fmt.Println(strings.Repeat("=", 80))

		developerRepo := repository.NewDeveloperRepository(db, logger, metricsCollector)
		scoringService := services.NewScoringService(projectRepo, developerRepo, logger, metricsCollector,
			cfg.Scoring.Workers, cfg.Scoring.Shards)

		summary, err := scoringService.Run(ctx, asOf)
		if err != nil {
			fmt.Printf("Scoring failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Run %s as of %s: %d developers, %d scored, %d unqualified\n",
			summary.RunID, summary.AsOf, summary.Developers, summary.Scored, summary.Unqualified)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"rows_read":        result.RowsRead,
		"loaded":           result.Loaded,
		"duration_seconds": result.Duration.Seconds(),
	})
}
