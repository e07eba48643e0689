package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"reliability-platform/internal/models"
)

// developerRow mirrors one row of the developers table
type developerRow struct {
	Name                  string          `db:"name"`
	ParentCompany         string          `db:"parent_company"`
	TotalProjects         int             `db:"total_projects"`
	Operational           int             `db:"operational"`
	Withdrawn             int             `db:"withdrawn"`
	Active                int             `db:"active"`
	UnderConstruction     int             `db:"under_construction"`
	Suspended             int             `db:"suspended"`
	Regions               pq.StringArray  `db:"regions"`
	NumRegions            int             `db:"num_regions"`
	FuelTypes             pq.StringArray  `db:"fuel_types"`
	NumFuelTypes          int             `db:"num_fuel_types"`
	States                pq.StringArray  `db:"states"`
	TotalCapacityMW       float64         `db:"total_capacity_mw"`
	OperationalCapacityMW float64         `db:"operational_capacity_mw"`
	AvgCapacityMW         float64         `db:"avg_capacity_mw"`
	FirstProjectDate      sql.NullTime    `db:"first_project_date"`
	LatestProjectDate     sql.NullTime    `db:"latest_project_date"`
	AvgTimelineDays       sql.NullFloat64 `db:"avg_timeline_days"`
	YearsSinceFirst       float64         `db:"years_since_first"`
	CompletionRate        sql.NullFloat64 `db:"completion_rate"`
	Score                 sql.NullFloat64 `db:"score"`
	CompletionRateScore   sql.NullFloat64 `db:"completion_rate_score"`
	BreakdownTimelineDays sql.NullFloat64 `db:"breakdown_timeline_days"`
	TimelineScore         sql.NullFloat64 `db:"timeline_score"`
	ProjectVolume         sql.NullInt64   `db:"project_volume"`
	VolumeScore           sql.NullFloat64 `db:"volume_score"`
	RegionalBreadth       sql.NullInt64   `db:"regional_breadth"`
	BreadthScore          sql.NullFloat64 `db:"breadth_score"`
	TechDiversity         sql.NullInt64   `db:"tech_diversity"`
	DiversityScore        sql.NullFloat64 `db:"diversity_score"`
	ActivePipeline        sql.NullInt64   `db:"active_pipeline"`
	PipelineScore         sql.NullFloat64 `db:"pipeline_score"`
	TrackRecordYears      sql.NullFloat64 `db:"track_record_years"`
	DepthScore            sql.NullFloat64 `db:"depth_score"`
	RunID                 string          `db:"run_id"`
}

const developerColumns = `name, parent_company, total_projects, operational, withdrawn, active,
	under_construction, suspended, regions, num_regions, fuel_types, num_fuel_types, states,
	total_capacity_mw, operational_capacity_mw, avg_capacity_mw, first_project_date,
	latest_project_date, avg_timeline_days, years_since_first, completion_rate, score,
	completion_rate_score, breakdown_timeline_days, timeline_score, project_volume, volume_score,
	regional_breadth, breadth_score, tech_diversity, diversity_score, active_pipeline,
	pipeline_score, track_record_years, depth_score, run_id`

const insertDeveloperSQL = `INSERT INTO developers (` + developerColumns + `) VALUES (
	:name, :parent_company, :total_projects, :operational, :withdrawn, :active,
	:under_construction, :suspended, :regions, :num_regions, :fuel_types, :num_fuel_types, :states,
	:total_capacity_mw, :operational_capacity_mw, :avg_capacity_mw, :first_project_date,
	:latest_project_date, :avg_timeline_days, :years_since_first, :completion_rate, :score,
	:completion_rate_score, :breakdown_timeline_days, :timeline_score, :project_volume, :volume_score,
	:regional_breadth, :breadth_score, :tech_diversity, :diversity_score, :active_pipeline,
	:pipeline_score, :track_record_years, :depth_score, :run_id)`

func toDeveloperRow(r *models.DeveloperRecord) developerRow {
	m := &r.DeveloperMetrics
	row := developerRow{
		Name:                  m.Name,
		ParentCompany:         m.ParentCompany,
		TotalProjects:         m.TotalProjects,
		Operational:           m.Operational,
		Withdrawn:             m.Withdrawn,
		Active:                m.Active,
		UnderConstruction:     m.UnderConstruction,
		Suspended:             m.Suspended,
		Regions:               stringArray(m.Regions),
		NumRegions:            m.NumRegions,
		FuelTypes:             stringArray(m.FuelTypes),
		NumFuelTypes:          m.NumFuelTypes,
		States:                stringArray(m.States),
		TotalCapacityMW:       m.TotalCapacityMW,
		OperationalCapacityMW: m.OperationalCapacityMW,
		AvgCapacityMW:         m.AvgCapacityMW,
		FirstProjectDate:      nullDate(m.FirstProjectDate),
		LatestProjectDate:     nullDate(m.LatestProjectDate),
		AvgTimelineDays:       nullFloat(m.AvgTimelineDays),
		YearsSinceFirst:       m.YearsSinceFirst,
		CompletionRate:        nullFloat(r.CompletionRate),
		Score:                 nullFloat(r.Score),
		RunID:                 r.RunID,
	}

	if b := r.ScoreBreakdown; b != nil {
		row.CompletionRateScore = validFloat(b.CompletionRateScore)
		row.BreakdownTimelineDays = nullFloat(b.AvgTimelineDays)
		row.TimelineScore = validFloat(b.TimelineScore)
		row.ProjectVolume = validInt(b.ProjectVolume)
		row.VolumeScore = validFloat(b.VolumeScore)
		row.RegionalBreadth = validInt(b.RegionalBreadth)
		row.BreadthScore = validFloat(b.BreadthScore)
		row.TechDiversity = validInt(b.TechDiversity)
		row.DiversityScore = validFloat(b.DiversityScore)
		row.ActivePipeline = validInt(b.ActivePipeline)
		row.PipelineScore = validFloat(b.PipelineScore)
		row.TrackRecordYears = validFloat(b.TrackRecordYears)
		row.DepthScore = validFloat(b.DepthScore)
	}
	return row
}

func (row *developerRow) record() models.DeveloperRecord {
	rec := models.DeveloperRecord{
		DeveloperMetrics: models.DeveloperMetrics{
			Name:                  row.Name,
			ParentCompany:         row.ParentCompany,
			TotalProjects:         row.TotalProjects,
			Operational:           row.Operational,
			Withdrawn:             row.Withdrawn,
			Active:                row.Active,
			UnderConstruction:     row.UnderConstruction,
			Suspended:             row.Suspended,
			Regions:               models.NewStringSet(row.Regions...),
			NumRegions:            row.NumRegions,
			FuelTypes:             models.NewStringSet(row.FuelTypes...),
			NumFuelTypes:          row.NumFuelTypes,
			States:                models.NewStringSet(row.States...),
			TotalCapacityMW:       row.TotalCapacityMW,
			OperationalCapacityMW: row.OperationalCapacityMW,
			AvgCapacityMW:         row.AvgCapacityMW,
			FirstProjectDate:      dateOf(row.FirstProjectDate),
			LatestProjectDate:     dateOf(row.LatestProjectDate),
			AvgTimelineDays:       floatOf(row.AvgTimelineDays),
			YearsSinceFirst:       row.YearsSinceFirst,
		},
		CompletionRate: floatOf(row.CompletionRate),
		Score:          floatOf(row.Score),
		RunID:          row.RunID,
	}

	if row.Score.Valid {
		rec.ScoreBreakdown = &models.ScoreBreakdown{
			CompletionRate:      row.CompletionRate.Float64,
			CompletionRateScore: row.CompletionRateScore.Float64,
			AvgTimelineDays:     floatOf(row.BreakdownTimelineDays),
			TimelineScore:       row.TimelineScore.Float64,
			ProjectVolume:       int(row.ProjectVolume.Int64),
			VolumeScore:         row.VolumeScore.Float64,
			RegionalBreadth:     int(row.RegionalBreadth.Int64),
			BreadthScore:        row.BreadthScore.Float64,
			TechDiversity:       int(row.TechDiversity.Int64),
			DiversityScore:      row.DiversityScore.Float64,
			ActivePipeline:      int(row.ActivePipeline.Int64),
			PipelineScore:       row.PipelineScore.Float64,
			TrackRecordYears:    row.TrackRecordYears.Float64,
			DepthScore:          row.DepthScore.Float64,
		}
	}
	return rec
}

// stringArray never returns nil so the NOT NULL text[] columns get '{}'
func stringArray(s models.StringSet) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

func nullDate(d *models.Date) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}

func dateOf(t sql.NullTime) *models.Date {
	if !t.Valid {
		return nil
	}
	return models.NewDate(t.Time)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func validFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func validInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func floatOf(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
