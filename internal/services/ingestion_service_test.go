package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliability-platform/internal/models"
)

func TestIngestSource_KeepsFlaggedAndDuplicateRows(t *testing.T) {
	logger, m := newTestDeps()
	repo := &fakeProjectRepo{}
	svc := NewIngestionService(repo, logger, m)

	negative := -1.0
	orphan := project("", "PJM", "9", models.StatusActive, nil, "Solar", "", "")
	badCapacity := project("Acme", "PJM", "3", models.StatusActive, &negative, "Solar", "", "")
	noRegion := project("Acme", "", "4", models.StatusActive, nil, "Solar", "", "")

	src := &fakeSource{rows: []models.ProjectRecord{
		project("Acme", "PJM", "1", models.StatusOperational, ptr(100), "Solar", "2018-01-01", "2019-01-01"),
		project("Acme", "PJM", "1", models.StatusWithdrawn, nil, "Solar", "", ""),
		orphan,
		badCapacity,
		noRegion,
		project("Beta", "ERCOT", "1", models.StatusActive, ptr(50), "Wind", "2021-05-01", ""),
	}}

	result, err := svc.IngestSource(context.Background(), src, 500)
	require.NoError(t, err)

	assert.Equal(t, 6, result.RowsRead)
	assert.Equal(t, 5, result.Loaded)
	assert.Equal(t, 1, result.Unattributed)
	assert.Equal(t, 2, result.Flagged)
	assert.Equal(t, 1, result.Duplicates)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "duplicate project PJM/1")

	require.Len(t, repo.projects, 5)
	assert.Equal(t, models.StatusOperational, repo.projects[0].Status)
	assert.Equal(t, models.StatusWithdrawn, repo.projects[1].Status, "a repeated key is still a project")
	assert.Equal(t, "3", repo.projects[2].QueueID)
	assert.Nil(t, repo.projects[2].CapacityMW, "negative capacity is absent")
	assert.Equal(t, "", repo.projects[3].Region)
	assert.Equal(t, "Beta", repo.projects[4].DeveloperCanonical)
	assert.Equal(t, 500, repo.batchSize)
	assert.Equal(t, -1.0, negative, "the source record is not modified")

	assert.Equal(t, float64(5), testutil.ToFloat64(m.IngestionRecordsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionSkippedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("validation_warning")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionErrorsTotal.WithLabelValues("duplicate_key")))
}

func TestIngestSource_Errors(t *testing.T) {
	logger, m := newTestDeps()

	t.Run("source failure", func(t *testing.T) {
		svc := NewIngestionService(&fakeProjectRepo{}, logger, m)
		_, err := svc.IngestSource(context.Background(), &fakeSource{err: errors.New("disk gone")}, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk gone")
	})

	t.Run("load failure", func(t *testing.T) {
		svc := NewIngestionService(&fakeProjectRepo{replaceErr: errors.New("copy failed")}, logger, m)
		src := &fakeSource{rows: []models.ProjectRecord{project("Acme", "PJM", "1", models.StatusActive, nil, "", "", "")}}
		_, err := svc.IngestSource(context.Background(), src, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load projects")
	})
}
