package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"reliability-platform/internal/models"
	"reliability-platform/pkg/database"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// ProjectRepository provides access to the queue projects table
type ProjectRepository interface {
	// ReplaceProjects swaps the whole table for projects, loading in batches
	ReplaceProjects(ctx context.Context, projects []models.ProjectRecord, batchSize int) (int, error)
	ListProjects(ctx context.Context) ([]models.ProjectRecord, error)
	ListDeveloperProjects(ctx context.Context, filter ProjectFilter) ([]models.ProjectRecord, int, error)
	ProjectsByDeveloper(ctx context.Context, names []string) (map[string][]models.ProjectRecord, error)
	CountProjects(ctx context.Context) (int, error)
	CountByRegion(ctx context.Context) ([]GroupCount, error)
	TopFuelTypes(ctx context.Context, limit int) ([]GroupCount, error)
}

// ProjectFilter pages through one developer's projects
type ProjectFilter struct {
	Developer string
	Limit     int
	Offset    int
}

// GroupCount is a project count for one region or fuel type
type GroupCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

type projectRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ProjectRepository {
	return &projectRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

var projectColumns = []string{
	"queue_id", "region", "name", "developer", "developer_canonical", "parent_company",
	"capacity_mw", "fuel_type", "status", "state", "county", "poi", "queue_date", "cod",
}

const selectProjectSQL = `
	SELECT queue_id, region, name, developer, developer_canonical, parent_company,
	       capacity_mw, fuel_type, status, state, county, poi, queue_date, cod
	FROM projects`

// newest queue date first; the text dates are ISO so they sort lexically
const projectOrder = ` ORDER BY NULLIF(queue_date, '') DESC NULLS LAST, region, queue_id, id`

func (r *projectRepository) ReplaceProjects(ctx context.Context, projects []models.ProjectRecord, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	loaded := 0
	err := r.db.WithTx(ctx, "replace_projects", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE projects RESTART IDENTITY`); err != nil {
			return fmt.Errorf("failed to truncate projects: %w", err)
		}

		for start := 0; start < len(projects); start += batchSize {
			end := start + batchSize
			if end > len(projects) {
				end = len(projects)
			}
			if err := r.copyBatch(ctx, tx, projects[start:end]); err != nil {
				return err
			}
			loaded += end - start
			r.metrics.IngestionBatchSize.Observe(float64(end - start))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace projects: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_REPLACE_PROJECTS] Projects table replaced", logging.Fields{
		"count":      loaded,
		"batch_size": batchSize,
	})
	return loaded, nil
}

// copyBatch streams one batch through COPY FROM STDIN
func (r *projectRepository) copyBatch(ctx context.Context, tx *sqlx.Tx, batch []models.ProjectRecord) error {
	timer := time.Now()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("projects", projectColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for i := range batch {
		p := &batch[i]
		if _, err := stmt.ExecContext(ctx,
			p.QueueID, p.Region, p.Name, p.Developer, p.DeveloperCanonical, p.ParentCompany,
			p.CapacityMW, p.FuelType, string(p.Status), p.State, p.County, p.POI, p.QueueDate, p.COD,
		); err != nil {
			return fmt.Errorf("failed to copy project %s/%s: %w", p.Region, p.QueueID, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_BATCH_COPY] Batch copied", logging.Fields{
		"count":       len(batch),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return nil
}

func (r *projectRepository) ListProjects(ctx context.Context) ([]models.ProjectRecord, error) {
	var projects []models.ProjectRecord
	query := selectProjectSQL + ` ORDER BY developer_canonical, region, queue_id, id`
	if err := r.db.SelectContext(ctx, "list_projects", &projects, query); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) ListDeveloperProjects(ctx context.Context, filter ProjectFilter) ([]models.ProjectRecord, int, error) {
	var total int
	err := r.db.GetContext(ctx, "count_developer_projects", &total,
		`SELECT COUNT(*) FROM projects WHERE developer_canonical = $1`, filter.Developer)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count developer projects: %w", err)
	}

	var projects []models.ProjectRecord
	query := selectProjectSQL + ` WHERE developer_canonical = $1` + projectOrder + ` LIMIT $2 OFFSET $3`
	err = r.db.SelectContext(ctx, "list_developer_projects", &projects, query,
		filter.Developer, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list developer projects: %w", err)
	}
	return projects, total, nil
}

func (r *projectRepository) ProjectsByDeveloper(ctx context.Context, names []string) (map[string][]models.ProjectRecord, error) {
	out := make(map[string][]models.ProjectRecord, len(names))
	if len(names) == 0 {
		return out, nil
	}

	var projects []models.ProjectRecord
	query := selectProjectSQL + ` WHERE developer_canonical = ANY($1)` + projectOrder
	if err := r.db.SelectContext(ctx, "projects_by_developer", &projects, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to load projects by developer: %w", err)
	}

	for _, p := range projects {
		out[p.DeveloperCanonical] = append(out[p.DeveloperCanonical], p)
	}
	return out, nil
}

func (r *projectRepository) CountProjects(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, "count_projects", &n, `SELECT COUNT(*) FROM projects`); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}

func (r *projectRepository) CountByRegion(ctx context.Context) ([]GroupCount, error) {
	var counts []GroupCount
	query := `
		SELECT region AS key, COUNT(*) AS count
		FROM projects
		GROUP BY region
		ORDER BY count DESC, region`
	if err := r.db.SelectContext(ctx, "count_by_region", &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count projects by region: %w", err)
	}
	return counts, nil
}

func (r *projectRepository) TopFuelTypes(ctx context.Context, limit int) ([]GroupCount, error) {
	var counts []GroupCount
	query := `
		SELECT fuel_type AS key, COUNT(*) AS count
		FROM projects
		WHERE fuel_type <> ''
		GROUP BY fuel_type
		ORDER BY count DESC, fuel_type
		LIMIT $1`
	if err := r.db.SelectContext(ctx, "top_fuel_types", &counts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to count projects by fuel type: %w", err)
	}
	return counts, nil
}
