package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// maxReportedErrors bounds IngestionResult.Errors
const maxReportedErrors = 50

// IngestionService copies the upstream queue database into the projects table
type IngestionService struct {
	repo    repository.ProjectRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	RowsRead     int
	Loaded       int
	Unattributed int
	Flagged      int
	Duplicates   int
	Duration     time.Duration
	Errors       []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.ProjectRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestSource reads every source project and replaces the projects table
// with the attributed ones. Rows without a canonical developer are skipped.
// Rows with data-quality problems or a repeated (region, queue_id) key are
// still loaded, and counted and reported alongside.
func (s *IngestionService) IngestSource(ctx context.Context, source repository.SourceReader, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting source ingestion", logging.Fields{
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{Errors: make([]string, 0)}
	projects := make([]models.ProjectRecord, 0, 1024)
	seen := make(map[[2]string]struct{})

	err := source.ReadProjects(ctx, func(p models.ProjectRecord) error {
		result.RowsRead++

		if !p.Attributed() {
			result.Unattributed++
			return nil
		}

		if err := p.Validate(); err != nil {
			result.Flagged++
			s.metrics.RecordIngestionError("validation_warning")
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				s.reportError(result, fmt.Sprintf("row %d: %s (%s=%q)", result.RowsRead, verr.Message, verr.Field, verr.Value))
			}
			p.Sanitize()
		}

		key := [2]string{p.Region, p.QueueID}
		if _, dup := seen[key]; dup {
			result.Duplicates++
			s.metrics.RecordIngestionError("duplicate_key")
			s.reportError(result, fmt.Sprintf("row %d: duplicate project %s/%s", result.RowsRead, p.Region, p.QueueID))
		}
		seen[key] = struct{}{}

		projects = append(projects, p)
		return nil
	})
	if err != nil {
		s.metrics.RecordIngestionError("source_error")
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	s.logger.Info(ctx, "[INGEST_READ] Source rows read", logging.Fields{
		"rows_read":    result.RowsRead,
		"accepted":     len(projects),
		"unattributed": result.Unattributed,
		"flagged":      result.Flagged,
		"duplicates":   result.Duplicates,
		"stage":        "READ",
	})

	loaded, err := s.repo.ReplaceProjects(ctx, projects, batchSize)
	if err != nil {
		s.metrics.RecordIngestionError("load_error")
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	result.Loaded = loaded

	s.metrics.IngestionRecordsTotal.Add(float64(loaded))
	s.metrics.IngestionSkippedTotal.Add(float64(result.Unattributed))

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Source ingestion completed", logging.Fields{
		"rows_read":        result.RowsRead,
		"loaded":           result.Loaded,
		"duration_seconds": result.Duration.Seconds(),
		"error_count":      len(result.Errors),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) reportError(result *IngestionResult, msg string) {
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, msg)
	}
}
