package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"reliability-platform/internal/models"
	"reliability-platform/pkg/database"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// DeveloperRepository provides access to precomputed developer rows
type DeveloperRepository interface {
	// ReplaceDevelopers records run and swaps the developers table for records
	ReplaceDevelopers(ctx context.Context, run ScoringRun, records []models.DeveloperRecord) error
	QueryDevelopers(ctx context.Context, filter DeveloperFilter) ([]models.DeveloperRecord, int, error)
	Rankings(ctx context.Context, sortBy SortKey, limit, offset int) ([]models.DeveloperRecord, int, error)
	FindDeveloper(ctx context.Context, name string) (*models.DeveloperRecord, Resolution, error)
	TopScored(ctx context.Context, limit int) ([]models.DeveloperRecord, error)
	ListScores(ctx context.Context) ([]float64, error)
	CountDevelopers(ctx context.Context) (total int, scored int, err error)
	LatestRun(ctx context.Context) (*ScoringRun, error)
	HealthCheck(ctx context.Context) error
}

// SortKey names a whitelisted ordering of developer listings
type SortKey string

const (
	SortScore          SortKey = "score"
	SortName           SortKey = "name"
	SortTotalProjects  SortKey = "total_projects"
	SortOperational    SortKey = "operational"
	SortCompletionRate SortKey = "completion_rate"
)

// Every ordering ends on name so pages are stable
var sortClauses = map[SortKey]string{
	SortScore:          "score DESC NULLS LAST, name ASC",
	SortName:           "name ASC",
	SortTotalProjects:  "total_projects DESC, name ASC",
	SortOperational:    "operational DESC, name ASC",
	SortCompletionRate: "completion_rate DESC NULLS LAST, name ASC",
}

// ParseSortKey validates a listing sort parameter
func ParseSortKey(s string) (SortKey, bool) {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	_, ok := sortClauses[key]
	return key, ok
}

// ParseRankingKey validates a rankings sort parameter; rankings cannot sort by name
func ParseRankingKey(s string) (SortKey, bool) {
	key, ok := ParseSortKey(s)
	return key, ok && key != SortName
}

// DeveloperFilter defines filters for listing developers
type DeveloperFilter struct {
	Search      string
	Region      string
	FuelType    string
	MinProjects int
	SortBy      SortKey
	Limit       int
	Offset      int
}

// ScoringRun is one row of the scoring_runs table
type ScoringRun struct {
	RunID          string    `db:"run_id" json:"run_id"`
	AsOf           time.Time `db:"as_of" json:"as_of"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
	FinishedAt     time.Time `db:"finished_at" json:"finished_at"`
	ProjectCount   int       `db:"project_count" json:"project_count"`
	DeveloperCount int       `db:"developer_count" json:"developer_count"`
	ScoredCount    int       `db:"scored_count" json:"scored_count"`
}

// insertChunk keeps a multi-row insert under the Postgres bind parameter limit
const insertChunk = 500

type developerRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDeveloperRepository creates a new developer repository
func NewDeveloperRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) DeveloperRepository {
	return &developerRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *developerRepository) ReplaceDevelopers(ctx context.Context, run ScoringRun, records []models.DeveloperRecord) error {
	rows := make([]developerRow, len(records))
	for i := range records {
		records[i].RunID = run.RunID
		rows[i] = toDeveloperRow(&records[i])
	}

	err := r.db.WithTx(ctx, "replace_developers", func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO scoring_runs (run_id, as_of, started_at, finished_at, project_count, developer_count, scored_count)
			VALUES (:run_id, :as_of, :started_at, :finished_at, :project_count, :developer_count, :scored_count)`, run)
		if err != nil {
			return fmt.Errorf("failed to record scoring run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM developers`); err != nil {
			return fmt.Errorf("failed to clear developers: %w", err)
		}

		for start := 0; start < len(rows); start += insertChunk {
			end := start + insertChunk
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := tx.NamedExecContext(ctx, insertDeveloperSQL, rows[start:end]); err != nil {
				return fmt.Errorf("failed to insert developers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug(ctx, "[REPO_REPLACE_DEVELOPERS] Developers table replaced", logging.Fields{
		"run_id": run.RunID,
		"count":  len(rows),
	})
	return nil
}

func (r *developerRepository) QueryDevelopers(ctx context.Context, filter DeveloperFilter) ([]models.DeveloperRecord, int, error) {
	where, args := developerWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, "count_developers", &total, `SELECT COUNT(*) FROM developers`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count developers: %w", err)
	}

	order, ok := sortClauses[filter.SortBy]
	if !ok {
		order = sortClauses[SortScore]
	}
	query := fmt.Sprintf(`SELECT %s FROM developers%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		developerColumns, where, order, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	records, err := r.selectRecords(ctx, "query_developers", query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query developers: %w", err)
	}
	return records, total, nil
}

// developerWhere renders the filter as a WHERE clause with positional args
func developerWhere(filter DeveloperFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.MinProjects > 0 {
		add("total_projects >= $%d", filter.MinProjects)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("strpos(LOWER(name), LOWER($%d)) > 0", s)
	}
	if s := strings.TrimSpace(filter.Region); s != "" {
		add("EXISTS (SELECT 1 FROM unnest(regions) AS v WHERE strpos(LOWER(v), LOWER($%d)) > 0)", s)
	}
	if s := strings.TrimSpace(filter.FuelType); s != "" {
		add("EXISTS (SELECT 1 FROM unnest(fuel_types) AS v WHERE strpos(LOWER(v), LOWER($%d)) > 0)", s)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *developerRepository) Rankings(ctx context.Context, sortBy SortKey, limit, offset int) ([]models.DeveloperRecord, int, error) {
	var total int
	if err := r.db.GetContext(ctx, "count_ranked", &total, `SELECT COUNT(*) FROM developers WHERE score IS NOT NULL`); err != nil {
		return nil, 0, fmt.Errorf("failed to count ranked developers: %w", err)
	}

	order, ok := sortClauses[sortBy]
	if !ok || sortBy == SortName {
		order = sortClauses[SortScore]
	}
	query := fmt.Sprintf(`SELECT %s FROM developers WHERE score IS NOT NULL ORDER BY %s LIMIT $1 OFFSET $2`,
		developerColumns, order)

	records, err := r.selectRecords(ctx, "rankings", query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load rankings: %w", err)
	}
	return records, total, nil
}

func (r *developerRepository) FindDeveloper(ctx context.Context, name string) (*models.DeveloperRecord, Resolution, error) {
	var exact []string
	err := r.db.SelectContext(ctx, "lookup_exact", &exact,
		`SELECT name FROM developers WHERE LOWER(name) = ANY($1) ORDER BY name`, pq.Array(nameVariants(name)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up developer: %w", err)
	}

	var partial []string
	if len(exact) == 0 {
		err = r.db.SelectContext(ctx, "lookup_partial", &partial,
			`SELECT name FROM developers WHERE strpos(LOWER(name), $1) > 0 ORDER BY name LIMIT $2`,
			strings.ToLower(strings.TrimSpace(name)), maxCandidates)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up developer: %w", err)
		}
	}

	resolved, resolution, err := resolveName(name, exact, partial)
	if err != nil {
		return nil, "", err
	}

	var row developerRow
	err = r.db.GetContext(ctx, "get_developer", &row,
		`SELECT `+developerColumns+` FROM developers WHERE name = $1`, resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &NotFoundError{Resource: "developer", ID: name}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get developer: %w", err)
	}

	rec := row.record()
	return &rec, resolution, nil
}

func (r *developerRepository) TopScored(ctx context.Context, limit int) ([]models.DeveloperRecord, error) {
	query := `SELECT ` + developerColumns + ` FROM developers WHERE score IS NOT NULL ORDER BY ` +
		sortClauses[SortScore] + ` LIMIT $1`
	records, err := r.selectRecords(ctx, "top_scored", query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top developers: %w", err)
	}
	return records, nil
}

func (r *developerRepository) ListScores(ctx context.Context) ([]float64, error) {
	var scores []float64
	err := r.db.SelectContext(ctx, "list_scores", &scores,
		`SELECT score FROM developers WHERE score IS NOT NULL ORDER BY score`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	return scores, nil
}

func (r *developerRepository) CountDevelopers(ctx context.Context) (int, int, error) {
	var counts struct {
		Total  int `db:"total"`
		Scored int `db:"scored"`
	}
	err := r.db.GetContext(ctx, "count_all_developers", &counts,
		`SELECT COUNT(*) AS total, COUNT(score) AS scored FROM developers`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count developers: %w", err)
	}
	return counts.Total, counts.Scored, nil
}

func (r *developerRepository) LatestRun(ctx context.Context) (*ScoringRun, error) {
	var run ScoringRun
	err := r.db.GetContext(ctx, "latest_run", &run, `
		SELECT run_id, as_of, started_at, finished_at, project_count, developer_count, scored_count
		FROM scoring_runs
		ORDER BY finished_at DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "scoring_run", ID: "latest"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

func (r *developerRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func (r *developerRepository) selectRecords(ctx context.Context, queryType, query string, args ...interface{}) ([]models.DeveloperRecord, error) {
	var rows []developerRow
	if err := r.db.SelectContext(ctx, queryType, &rows, query, args...); err != nil {
		return nil, err
	}
	records := make([]models.DeveloperRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].record()
	}
	return records, nil
}
