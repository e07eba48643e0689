package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/scoring"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// topFuelTypes is the number of fuel types reported in corpus statistics
const topFuelTypes = 10

// StatisticsService computes corpus-wide statistics
type StatisticsService struct {
	developers repository.DeveloperRepository
	projects   repository.ProjectRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// CorpusStats summarizes the scored corpus
type CorpusStats struct {
	TotalDevelopers   int            `json:"total_developers"`
	ScoredDevelopers  int            `json:"scored_developers"`
	TotalProjects     int            `json:"total_projects"`
	AvgScore          *float64       `json:"avg_score"`
	MedianScore       *float64       `json:"median_score"`
	TopRegions        map[string]int `json:"top_regions"`
	TopFuelTypes      map[string]int `json:"top_fuel_types"`
	ScoreDistribution map[string]int `json:"score_distribution"`
	LastUpdated       *models.Date   `json:"last_updated"`
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(developers repository.DeveloperRepository, projects repository.ProjectRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		developers: developers,
		projects:   projects,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// GetStats gathers counts, score summary and distribution
func (s *StatisticsService) GetStats(ctx context.Context) (*CorpusStats, error) {
	startTime := time.Now()

	total, scored, err := s.developers.CountDevelopers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count developers: %w", err)
	}
	projectCount, err := s.projects.CountProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	scores, err := s.developers.ListScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	regions, err := s.projects.CountByRegion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count regions: %w", err)
	}
	fuels, err := s.projects.TopFuelTypes(ctx, topFuelTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to count fuel types: %w", err)
	}

	result := &CorpusStats{
		TotalDevelopers:   total,
		ScoredDevelopers:  scored,
		TotalProjects:     projectCount,
		AvgScore:          meanOf(scores, 1),
		MedianScore:       medianOf(scores, 1),
		TopRegions:        countMap(regions),
		TopFuelTypes:      countMap(fuels),
		ScoreDistribution: scoring.Distribution(scores),
	}

	run, err := s.developers.LatestRun(ctx)
	var notFound *repository.NotFoundError
	switch {
	case err == nil:
		result.LastUpdated = &models.Date{Time: run.AsOf}
	case !errors.As(err, &notFound):
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	s.logger.Debug(ctx, "[STATS_COMPUTED] Corpus statistics computed", logging.Fields{
		"developers":  total,
		"scored":      scored,
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	return result, nil
}

// meanOf returns the rounded mean, or nil for no values
func meanOf(values []float64, places int) *float64 {
	mean, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	v := models.RoundTo(mean, places)
	return &v
}

// medianOf returns the rounded median, or nil for no values
func medianOf(values []float64, places int) *float64 {
	median, err := stats.Median(values)
	if err != nil {
		return nil
	}
	v := models.RoundTo(median, places)
	return &v
}

func countMap(counts []repository.GroupCount) map[string]int {
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.Key] = c.Count
	}
	return out
}
