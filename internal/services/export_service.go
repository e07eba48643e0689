package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/pkg/logging"
)

// DefaultExportLimit is the number of top developers in a dashboard export
const DefaultExportLimit = 500

// ExportService builds the static dashboard document
type ExportService struct {
	developers repository.DeveloperRepository
	projects   repository.ProjectRepository
	logger     *logging.StructuredLogger
}

// Dashboard is the static dashboard document
type Dashboard struct {
	Developers       []models.DeveloperRecord      `json:"developers"`
	Projects         map[string][]DashboardProject `json:"projects"`
	Stats            DashboardStats                `json:"stats"`
	MarketAverages   MarketAverages                `json:"market_averages"`
	RegionBenchmarks map[string]RegionBenchmark    `json:"region_benchmarks"`
}

// DashboardProject is a project row in the export
type DashboardProject struct {
	QueueID    string   `json:"queue_id"`
	Region     string   `json:"region"`
	Name       string   `json:"name"`
	CapacityMW *float64 `json:"capacity_mw"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	State      string   `json:"state"`
	County     string   `json:"county"`
	QueueDate  string   `json:"queue_date"`
	COD        string   `json:"cod"`
}

// DashboardStats are the export headline numbers
type DashboardStats struct {
	TotalDevelopers int     `json:"total_developers"`
	TotalProjects   int     `json:"total_projects"`
	TotalCapacityGW float64 `json:"total_capacity_gw"`
	LastUpdated     string  `json:"last_updated"`
}

// MarketAverages are means over the exported developers
type MarketAverages struct {
	CompletionRate  float64 `json:"completion_rate"`
	AvgTimelineDays float64 `json:"avg_timeline_days"`
	AvgScore        float64 `json:"avg_score"`
	AvgCapacityMW   float64 `json:"avg_capacity_mw"`
}

// RegionBenchmark averages exported developers active in one region
type RegionBenchmark struct {
	AvgScore      float64 `json:"avg_score"`
	AvgCompletion float64 `json:"avg_completion"`
	AvgTimeline   float64 `json:"avg_timeline"`
	Count         int     `json:"count"`
}

// NewExportService creates a new export service
func NewExportService(developers repository.DeveloperRepository, projects repository.ProjectRepository, logger *logging.StructuredLogger) *ExportService {
	return &ExportService{
		developers: developers,
		projects:   projects,
		logger:     logger,
	}
}

// BuildDashboard loads the top limit scored developers and their projects.
// last_updated is the as-of date of the latest scoring run.
func (s *ExportService) BuildDashboard(ctx context.Context, limit int) (*Dashboard, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}

	run, err := s.developers.LatestRun(ctx)
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		return nil, fmt.Errorf("no scoring run recorded yet: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	records, err := s.developers.TopScored(ctx, limit)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(records))
	for i := range records {
		names[i] = records[i].Name
	}
	projects, err := s.projects.ProjectsByDeveloper(ctx, names)
	if err != nil {
		return nil, err
	}

	dashboard := buildDashboard(records, projects, run.AsOf)

	s.logger.Info(ctx, "[EXPORT_BUILT] Dashboard built", logging.Fields{
		"developers": len(dashboard.Developers),
		"run_id":     run.RunID,
		"as_of":      dashboard.Stats.LastUpdated,
	})
	return dashboard, nil
}

// WriteDashboard encodes the dashboard compactly
func WriteDashboard(w io.Writer, d *Dashboard) error {
	if err := json.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	return nil
}

// buildDashboard expects records ordered by score descending
func buildDashboard(records []models.DeveloperRecord, projects map[string][]models.ProjectRecord, asOf time.Time) *Dashboard {
	d := &Dashboard{
		Developers:       make([]models.DeveloperRecord, 0, len(records)),
		Projects:         make(map[string][]DashboardProject, len(records)),
		RegionBenchmarks: make(map[string]RegionBenchmark),
	}

	var (
		completion []float64
		timeline   []float64
		scores     []float64
		capacity   []float64
		totalProj  int
	)
	type regionValues struct {
		scores, completion, timeline []float64
	}
	regions := make(map[string]*regionValues)

	for _, rec := range records {
		d.Developers = append(d.Developers, rec)
		totalProj += rec.TotalProjects

		score := derefOr(rec.Score, 0)
		rate := derefOr(rec.CompletionRate, 0)
		scores = append(scores, score)
		completion = append(completion, rate)
		capacity = append(capacity, rec.TotalCapacityMW)
		if rec.AvgTimelineDays != nil {
			timeline = append(timeline, *rec.AvgTimelineDays)
		}

		for _, region := range rec.Regions {
			rv, ok := regions[region]
			if !ok {
				rv = &regionValues{}
				regions[region] = rv
			}
			rv.scores = append(rv.scores, score)
			rv.completion = append(rv.completion, rate)
			if rec.AvgTimelineDays != nil {
				rv.timeline = append(rv.timeline, *rec.AvgTimelineDays)
			}
		}

		rows := make([]DashboardProject, 0, len(projects[rec.Name]))
		for _, p := range projects[rec.Name] {
			rows = append(rows, dashboardProject(p))
		}
		d.Projects[rec.Name] = rows
	}

	totalCapacity, _ := stats.Sum(capacity)
	d.Stats = DashboardStats{
		TotalDevelopers: len(records),
		TotalProjects:   totalProj,
		TotalCapacityGW: models.RoundTo(totalCapacity/1000, 1),
		LastUpdated:     models.Date{Time: asOf}.String(),
	}

	d.MarketAverages = MarketAverages{
		CompletionRate:  roundedMean(completion, 4),
		AvgTimelineDays: roundedMean(timeline, 1),
		AvgScore:        roundedMean(scores, 1),
		AvgCapacityMW:   roundedMean(capacity, 1),
	}

	for region, rv := range regions {
		d.RegionBenchmarks[region] = RegionBenchmark{
			AvgScore:      roundedMean(rv.scores, 2),
			AvgCompletion: roundedMean(rv.completion, 4),
			AvgTimeline:   roundedMean(rv.timeline, 1),
			Count:         len(rv.scores),
		}
	}

	return d
}

func dashboardProject(p models.ProjectRecord) DashboardProject {
	row := DashboardProject{
		QueueID:   p.QueueID,
		Region:    p.Region,
		Name:      p.Name,
		Type:      p.FuelType,
		Status:    string(p.Status),
		State:     p.State,
		County:    p.County,
		QueueDate: p.QueueDate,
		COD:       p.COD,
	}
	if p.CapacityMW != nil {
		v := models.RoundTo(*p.CapacityMW, 2)
		row.CapacityMW = &v
	}
	return row
}

// roundedMean is 0 for no values
func roundedMean(values []float64, places int) float64 {
	if v := meanOf(values, places); v != nil {
		return *v
	}
	return 0
}

func derefOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
