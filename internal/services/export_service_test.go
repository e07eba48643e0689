package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
)

func exportFixture() (*fakeDeveloperRepo, *fakeProjectRepo) {
	a := scoredRecord("Acme", 80, "PJM", "ERCOT")
	a.TotalCapacityMW = 1500
	a.AvgTimelineDays = ptr(700)
	b := scoredRecord("Beta", 60, "PJM")
	b.TotalCapacityMW = 849.96
	b.Operational, b.Withdrawn = 3, 3
	b.CompletionRate = ptr(0.5)

	developers := &fakeDeveloperRepo{
		records: []models.DeveloperRecord{b, unscoredRecord("Tiny"), a},
		runs:    []repository.ScoringRun{{RunID: "r1", AsOf: time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)}},
	}
	projects := &fakeProjectRepo{projects: []models.ProjectRecord{
		project("Acme", "PJM", "1", models.StatusOperational, ptr(100.456), "Solar", "2021-01-01", "2022-01-01"),
		project("Acme", "ERCOT", "2", models.StatusActive, nil, "Wind", "2020-01-01", ""),
		project("Tiny", "PJM", "9", models.StatusActive, nil, "Wind", "", ""),
	}}
	return developers, projects
}

func TestBuildDashboard(t *testing.T) {
	developers, projects := exportFixture()
	logger, _ := newTestDeps()
	svc := NewExportService(developers, projects, logger)

	d, err := svc.BuildDashboard(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, d.Developers, 2)
	assert.Equal(t, "Acme", d.Developers[0].Name)
	assert.Equal(t, "Beta", d.Developers[1].Name)

	require.Len(t, d.Projects["Acme"], 2)
	assert.Equal(t, 100.46, *d.Projects["Acme"][0].CapacityMW)
	assert.Equal(t, "Solar", d.Projects["Acme"][0].Type)
	assert.NotNil(t, d.Projects["Beta"])
	assert.Empty(t, d.Projects["Beta"])
	assert.NotContains(t, d.Projects, "Tiny")

	assert.Equal(t, DashboardStats{
		TotalDevelopers: 2,
		TotalProjects:   20,
		TotalCapacityGW: 2.3,
		LastUpdated:     "2026-02-19",
	}, d.Stats)

	assert.Equal(t, MarketAverages{
		CompletionRate:  0.55,
		AvgTimelineDays: 700,
		AvgScore:        70,
		AvgCapacityMW:   1175,
	}, d.MarketAverages)

	assert.Equal(t, RegionBenchmark{AvgScore: 70, AvgCompletion: 0.55, AvgTimeline: 700, Count: 2}, d.RegionBenchmarks["PJM"])
	assert.Equal(t, RegionBenchmark{AvgScore: 80, AvgCompletion: 0.6, AvgTimeline: 700, Count: 1}, d.RegionBenchmarks["ERCOT"])
}

func TestBuildDashboard_Limit(t *testing.T) {
	developers, projects := exportFixture()
	logger, _ := newTestDeps()

	d, err := NewExportService(developers, projects, logger).BuildDashboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, d.Developers, 1)
	assert.Equal(t, "Acme", d.Developers[0].Name)
}

func TestBuildDashboard_NoRun(t *testing.T) {
	logger, _ := newTestDeps()
	_, err := NewExportService(&fakeDeveloperRepo{}, &fakeProjectRepo{}, logger).BuildDashboard(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scoring run")
}

func TestWriteDashboard_Deterministic(t *testing.T) {
	logger, _ := newTestDeps()

	render := func() []byte {
		developers, projects := exportFixture()
		d, err := NewExportService(developers, projects, logger).BuildDashboard(context.Background(), 0)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, WriteDashboard(&buf, d))
		return buf.Bytes()
	}

	first, second := render(), render()
	assert.Equal(t, first, second)
	assert.NotContains(t, string(first), "\n  ", "output is compact")

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Contains(t, decoded, "region_benchmarks")
}
