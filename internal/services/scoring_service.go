package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reliability-platform/internal/aggregation"
	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/scoring"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// ScoringService runs a full batch: projects to metrics to scores to the developers table
type ScoringService struct {
	projects   repository.ProjectRepository
	developers repository.DeveloperRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	workers    int
	shards     int
	newRunID   func() string
	now        func() time.Time
}

// RunSummary reports the outcome of one scoring run
type RunSummary struct {
	RunID       string        `json:"run_id"`
	AsOf        models.Date   `json:"as_of"`
	Projects    int           `json:"projects"`
	Developers  int           `json:"developers"`
	Scored      int           `json:"scored"`
	Unqualified int           `json:"unqualified"`
	Duration    time.Duration `json:"-"`
}

// NewScoringService creates a scoring service; workers and shards <= 0 fall
// back to the engine defaults
func NewScoringService(
	projects repository.ProjectRepository,
	developers repository.DeveloperRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	workers, shards int,
) *ScoringService {
	return &ScoringService{
		projects:   projects,
		developers: developers,
		logger:     logger,
		metrics:    metricsCollector,
		workers:    workers,
		shards:     shards,
		newRunID:   uuid.NewString,
		now:        time.Now,
	}
}

// Run aggregates every stored project as of asOf, scores each developer and
// replaces the developers table. The same project set and asOf always yield
// the same rows.
func (s *ScoringService) Run(ctx context.Context, asOf time.Time) (summary *RunSummary, err error) {
	runID := s.newRunID()
	ctx = logging.WithRunID(ctx, runID)
	asOf = models.Day(asOf)
	started := s.now().UTC()
	timer := s.metrics.NewTimer(s.metrics.ScoringRunDuration)
	log := s.logger.WithFields(logging.Fields{"as_of": asOf.Format("2006-01-02")})

	defer func() {
		if err != nil {
			s.metrics.RecordScoringRun(0, 0, 0, err)
			log.Error(ctx, "[SCORING_RUN_ERROR] Scoring run failed", logging.Fields{}, err)
		}
	}()

	log.Info(ctx, "[SCORING_RUN_START] Starting scoring run", logging.Fields{
		"workers": s.workers,
		"shards":  s.shards,
		"stage":   "INITIALIZATION",
	})

	records, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	developerMetrics := aggregation.AggregateSharded(records, asOf, s.shards)
	log.Info(ctx, "[SCORING_AGGREGATE] Projects aggregated", logging.Fields{
		"projects":   len(records),
		"developers": len(developerMetrics),
		"stage":      "AGGREGATE",
	})

	results := scoring.ScoreBatch(developerMetrics, s.workers)
	developerRecords := scoring.Records(developerMetrics, results)

	scored := 0
	for _, r := range results {
		if r.Qualified() {
			scored++
		}
	}

	run := repository.ScoringRun{
		RunID:          runID,
		AsOf:           asOf,
		StartedAt:      started,
		FinishedAt:     s.now().UTC(),
		ProjectCount:   len(records),
		DeveloperCount: len(developerRecords),
		ScoredCount:    scored,
	}
	if err := s.developers.ReplaceDevelopers(ctx, run, developerRecords); err != nil {
		return nil, fmt.Errorf("failed to persist developers: %w", err)
	}

	summary = &RunSummary{
		RunID:       runID,
		AsOf:        models.Date{Time: asOf},
		Projects:    len(records),
		Developers:  len(developerRecords),
		Scored:      scored,
		Unqualified: len(developerRecords) - scored,
		Duration:    timer.ObserveDuration(),
	}
	s.metrics.RecordScoringRun(summary.Projects, summary.Scored, summary.Unqualified, nil)

	log.Info(ctx, "[SCORING_RUN_COMPLETE] Scoring run completed", logging.Fields{
		"projects":         summary.Projects,
		"developers":       summary.Developers,
		"scored":           summary.Scored,
		"unqualified":      summary.Unqualified,
		"duration_seconds": summary.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return summary, nil
}

// ParseAsOf reads an evaluation date flag; empty means today in UTC
func ParseAsOf(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return models.Day(now.UTC()), nil
	}
	t, ok := models.ParseDate(value)
	if !ok {
		return time.Time{}, &models.ValidationError{Field: "as_of", Value: value, Message: "as-of date must be YYYY-MM-DD"}
	}
	return t, nil
}
