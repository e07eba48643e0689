package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"reliability-platform/internal/models"
)

// SourceReader reads the upstream interconnection queue database
type SourceReader interface {
	ReadProjects(ctx context.Context, fn func(models.ProjectRecord) error) error
}

// sourceRow mirrors the upstream projects table, where the standardized
// columns carry a _std suffix and anything may be NULL. SQLite does not
// enforce column types, so capacity arrives as text and is parsed here.
type sourceRow struct {
	QueueID            sql.NullString `db:"queue_id"`
	Region             sql.NullString `db:"region"`
	Name               sql.NullString `db:"name"`
	Developer          sql.NullString `db:"developer"`
	DeveloperCanonical sql.NullString `db:"developer_canonical"`
	ParentCompany      sql.NullString `db:"parent_company"`
	CapacityMW         sql.NullString `db:"capacity_mw"`
	FuelType           sql.NullString `db:"type_std"`
	Status             sql.NullString `db:"status_std"`
	State              sql.NullString `db:"state"`
	County             sql.NullString `db:"county"`
	POI                sql.NullString `db:"poi"`
	QueueDate          sql.NullString `db:"queue_date_std"`
	COD                sql.NullString `db:"cod_std"`
}

func (s *sourceRow) record() models.ProjectRecord {
	p := models.ProjectRecord{
		QueueID:            s.QueueID.String,
		Region:             s.Region.String,
		Name:               s.Name.String,
		Developer:          s.Developer.String,
		DeveloperCanonical: s.DeveloperCanonical.String,
		ParentCompany:      s.ParentCompany.String,
		FuelType:           s.FuelType.String,
		Status:             models.Status(s.Status.String),
		State:              s.State.String,
		County:             s.County.String,
		POI:                s.POI.String,
		QueueDate:          s.QueueDate.String,
		COD:                s.COD.String,
		CapacityMW:         parseCapacity(s.CapacityMW),
	}
	return p
}

// parseCapacity returns nil for NULL, blank, non-numeric or non-finite values
func parseCapacity(raw sql.NullString) *float64 {
	if !raw.Valid {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw.String), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// queue_id is stored as an integer by some regions and capacity_mw may hold
// placeholders such as 'TBD', so both are read as text
const sourceQuery = `
	SELECT CAST(queue_id AS TEXT) AS queue_id, region, name, developer, developer_canonical,
	       parent_company, CAST(capacity_mw AS TEXT) AS capacity_mw, type_std, status_std, state, county, poi,
	       CAST(queue_date_std AS TEXT) AS queue_date_std, CAST(cod_std AS TEXT) AS cod_std
	FROM projects
	ORDER BY region, queue_id`

type sqliteSource struct {
	db *sqlx.DB
}

// NewSQLiteSource reads projects from an opened source database
func NewSQLiteSource(db *sqlx.DB) SourceReader {
	return &sqliteSource{db: db}
}

// ReadProjects streams every source row through fn, stopping at the first error
func (s *sqliteSource) ReadProjects(ctx context.Context, fn func(models.ProjectRecord) error) error {
	rows, err := s.db.QueryxContext(ctx, sourceQuery)
	if err != nil {
		return fmt.Errorf("failed to query source projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row sourceRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("failed to scan source project: %w", err)
		}
		if err := fn(row.record()); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read source projects: %w", err)
	}
	return nil
}
