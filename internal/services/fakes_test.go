package services

import (
	"context"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

func newTestDeps() (*logging.StructuredLogger, *metrics.Collector) {
	return logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry())
}

type fakeSource struct {
	rows []models.ProjectRecord
	err  error
}

func (f *fakeSource) ReadProjects(ctx context.Context, fn func(models.ProjectRecord) error) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

type fakeProjectRepo struct {
	projects   []models.ProjectRecord
	batchSize  int
	listErr    error
	replaceErr error
	lastFilter repository.ProjectFilter
}

func (f *fakeProjectRepo) ReplaceProjects(ctx context.Context, projects []models.ProjectRecord, batchSize int) (int, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.projects = append([]models.ProjectRecord(nil), projects...)
	f.batchSize = batchSize
	return len(projects), nil
}

func (f *fakeProjectRepo) ListProjects(ctx context.Context) ([]models.ProjectRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.ProjectRecord(nil), f.projects...), nil
}

func (f *fakeProjectRepo) ListDeveloperProjects(ctx context.Context, filter repository.ProjectFilter) ([]models.ProjectRecord, int, error) {
	f.lastFilter = filter
	var matched []models.ProjectRecord
	for _, p := range f.projects {
		if p.DeveloperCanonical == filter.Developer {
			matched = append(matched, p)
		}
	}
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (f *fakeProjectRepo) ProjectsByDeveloper(ctx context.Context, names []string) (map[string][]models.ProjectRecord, error) {
	out := make(map[string][]models.ProjectRecord)
	for _, n := range names {
		for _, p := range f.projects {
			if p.DeveloperCanonical == n {
				out[n] = append(out[n], p)
			}
		}
	}
	return out, nil
}

func (f *fakeProjectRepo) CountProjects(ctx context.Context) (int, error) {
	return len(f.projects), nil
}

func (f *fakeProjectRepo) CountByRegion(ctx context.Context) ([]repository.GroupCount, error) {
	return groupBy(f.projects, func(p models.ProjectRecord) string { return p.Region }, 0), nil
}

func (f *fakeProjectRepo) TopFuelTypes(ctx context.Context, limit int) ([]repository.GroupCount, error) {
	return groupBy(f.projects, func(p models.ProjectRecord) string { return p.FuelType }, limit), nil
}

func groupBy(projects []models.ProjectRecord, key func(models.ProjectRecord) string, limit int) []repository.GroupCount {
	counts := make(map[string]int)
	for _, p := range projects {
		if k := key(p); k != "" {
			counts[k]++
		}
	}
	out := make([]repository.GroupCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, repository.GroupCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type fakeDeveloperRepo struct {
	records    []models.DeveloperRecord
	runs       []repository.ScoringRun
	replaceErr error
	lastFilter repository.DeveloperFilter
	lastSort   repository.SortKey
	lastLimit  int
	lastOffset int
}

func (f *fakeDeveloperRepo) ReplaceDevelopers(ctx context.Context, run repository.ScoringRun, records []models.DeveloperRecord) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	for i := range records {
		records[i].RunID = run.RunID
	}
	f.runs = append(f.runs, run)
	f.records = append([]models.DeveloperRecord(nil), records...)
	return nil
}

func (f *fakeDeveloperRepo) QueryDevelopers(ctx context.Context, filter repository.DeveloperFilter) ([]models.DeveloperRecord, int, error) {
	f.lastFilter = filter
	return f.page(f.records, filter.Limit, filter.Offset)
}

func (f *fakeDeveloperRepo) Rankings(ctx context.Context, sortBy repository.SortKey, limit, offset int) ([]models.DeveloperRecord, int, error) {
	f.lastSort, f.lastLimit, f.lastOffset = sortBy, limit, offset
	return f.page(f.scored(), limit, offset)
}

func (f *fakeDeveloperRepo) page(records []models.DeveloperRecord, limit, offset int) ([]models.DeveloperRecord, int, error) {
	total := len(records)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return records[offset:end], total, nil
}

func (f *fakeDeveloperRepo) scored() []models.DeveloperRecord {
	var out []models.DeveloperRecord
	for _, r := range f.records {
		if r.Scored() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Score > *out[j].Score })
	return out
}

// FindDeveloper mirrors the repository lookup stages on the in-memory rows
func (f *fakeDeveloperRepo) FindDeveloper(ctx context.Context, name string) (*models.DeveloperRecord, repository.Resolution, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	spaced := strings.ReplaceAll(q, "-", " ")
	for i := range f.records {
		n := strings.ToLower(f.records[i].Name)
		if n == q || n == spaced {
			rec := f.records[i]
			return &rec, repository.ResolutionExact, nil
		}
	}

	var candidates []int
	for i := range f.records {
		if strings.Contains(strings.ToLower(f.records[i].Name), q) {
			candidates = append(candidates, i)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, "", &repository.NotFoundError{Resource: "developer", ID: name}
	case 1:
		rec := f.records[candidates[0]]
		return &rec, repository.ResolutionFuzzy, nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = f.records[c].Name
		}
		return nil, "", &repository.AmbiguousError{Query: name, Candidates: names}
	}
}

func (f *fakeDeveloperRepo) TopScored(ctx context.Context, limit int) ([]models.DeveloperRecord, error) {
	out := f.scored()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDeveloperRepo) ListScores(ctx context.Context) ([]float64, error) {
	var scores []float64
	for _, r := range f.records {
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}
	return scores, nil
}

func (f *fakeDeveloperRepo) CountDevelopers(ctx context.Context) (int, int, error) {
	scored := 0
	for _, r := range f.records {
		if r.Scored() {
			scored++
		}
	}
	return len(f.records), scored, nil
}

func (f *fakeDeveloperRepo) LatestRun(ctx context.Context) (*repository.ScoringRun, error) {
	if len(f.runs) == 0 {
		return nil, &repository.NotFoundError{Resource: "scoring_run", ID: "latest"}
	}
	run := f.runs[len(f.runs)-1]
	return &run, nil
}

func (f *fakeDeveloperRepo) HealthCheck(ctx context.Context) error {
	return nil
}

func ptr(v float64) *float64 {
	return &v
}

// project builds a queue record for tests
func project(developer, region, queueID string, status models.Status, capacity *float64, fuel, queued, cod string) models.ProjectRecord {
	return models.ProjectRecord{
		QueueID:            queueID,
		Region:             region,
		Name:               developer + " " + queueID,
		Developer:          developer + " LLC",
		DeveloperCanonical: developer,
		CapacityMW:         capacity,
		FuelType:           fuel,
		Status:             status,
		State:              "TX",
		QueueDate:          queued,
		COD:                cod,
	}
}

// scoredRecord builds a stored developer row with a score
func scoredRecord(name string, score float64, regions ...string) models.DeveloperRecord {
	m := models.DeveloperMetrics{
		Name:          name,
		TotalProjects: 10,
		Operational:   6,
		Withdrawn:     4,
		Regions:       models.NewStringSet(regions...),
		NumRegions:    len(regions),
	}
	return models.NewDeveloperRecord(m, &models.Scorecard{Score: score})
}

func unscoredRecord(name string) models.DeveloperRecord {
	return models.NewDeveloperRecord(models.DeveloperMetrics{Name: name, TotalProjects: 2, Operational: 1}, nil)
}
