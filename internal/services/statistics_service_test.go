package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/scoring"
)

func TestGetStats(t *testing.T) {
	developers := &fakeDeveloperRepo{
		records: []models.DeveloperRecord{
			scoredRecord("A", 85),
			scoredRecord("B", 61.25),
			scoredRecord("C", 12),
			unscoredRecord("D"),
		},
		runs: []repository.ScoringRun{{RunID: "r1", AsOf: time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)}},
	}
	projects := &fakeProjectRepo{projects: []models.ProjectRecord{
		project("A", "PJM", "1", models.StatusActive, nil, "Solar", "", ""),
		project("A", "PJM", "2", models.StatusActive, nil, "Wind", "", ""),
		project("B", "ERCOT", "1", models.StatusActive, nil, "Solar", "", ""),
	}}
	logger, m := newTestDeps()
	svc := NewStatisticsService(developers, projects, logger, m)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalDevelopers)
	assert.Equal(t, 3, stats.ScoredDevelopers)
	assert.Equal(t, 3, stats.TotalProjects)
	require.NotNil(t, stats.AvgScore)
	assert.Equal(t, 52.8, *stats.AvgScore)
	require.NotNil(t, stats.MedianScore)
	assert.Equal(t, 61.3, *stats.MedianScore)
	assert.Equal(t, map[string]int{"PJM": 2, "ERCOT": 1}, stats.TopRegions)
	assert.Equal(t, map[string]int{"Solar": 2, "Wind": 1}, stats.TopFuelTypes)
	assert.Equal(t, map[string]int{
		scoring.BucketPoor:      1,
		scoring.BucketBelowAvg:  0,
		scoring.BucketAverage:   0,
		scoring.BucketGood:      1,
		scoring.BucketExcellent: 1,
	}, stats.ScoreDistribution)
	require.NotNil(t, stats.LastUpdated)
	assert.Equal(t, "2026-02-19", stats.LastUpdated.String())
}

func TestGetStats_EmptyCorpus(t *testing.T) {
	logger, m := newTestDeps()
	svc := NewStatisticsService(&fakeDeveloperRepo{}, &fakeProjectRepo{}, logger, m)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Nil(t, stats.AvgScore)
	assert.Nil(t, stats.MedianScore)
	assert.Nil(t, stats.LastUpdated)
	assert.Len(t, stats.ScoreDistribution, 5)
	for _, n := range stats.ScoreDistribution {
		assert.Zero(t, n)
	}
}
