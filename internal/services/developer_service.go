package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/pkg/logging"
)

// Paging and compare limits for the query operations
const (
	DefaultPerPage         = 25
	MaxPerPage             = 100
	DefaultProjectsPerPage = 50
	MaxProjectsPerPage     = 200
	MinCompareNames        = 2
	MaxCompareNames        = 10
)

// DeveloperService answers developer queries from the precomputed tables
type DeveloperService struct {
	developers repository.DeveloperRepository
	projects   repository.ProjectRepository
	logger     *logging.StructuredLogger
}

// NewDeveloperService creates a new developer service
func NewDeveloperService(developers repository.DeveloperRepository, projects repository.ProjectRepository, logger *logging.StructuredLogger) *DeveloperService {
	return &DeveloperService{
		developers: developers,
		projects:   projects,
		logger:     logger,
	}
}

// PageMeta describes one page of a listing
type PageMeta struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
}

func newPageMeta(total, page, perPage int) PageMeta {
	return PageMeta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   int(math.Ceil(float64(total) / float64(perPage))),
	}
}

// Paging is a requested page; zero values take the defaults
type Paging struct {
	Page    int
	PerPage int
}

func (p Paging) resolve(defaultPerPage, maxPerPage int) (Paging, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = defaultPerPage
	}
	if p.Page < 1 {
		return p, &models.ValidationError{Field: "page", Value: strconv.Itoa(p.Page), Message: "page must be at least 1"}
	}
	if p.PerPage < 1 || p.PerPage > maxPerPage {
		return p, &models.ValidationError{
			Field:   "per_page",
			Value:   strconv.Itoa(p.PerPage),
			Message: fmt.Sprintf("per_page must be between 1 and %d", maxPerPage),
		}
	}
	return p, nil
}

func (p Paging) offset() int {
	return (p.Page - 1) * p.PerPage
}

// ListParams are the developer listing inputs
type ListParams struct {
	Search      string
	Region      string
	FuelType    string
	MinProjects int
	SortBy      string
	Paging
}

// DeveloperPage is one page of developers
type DeveloperPage struct {
	Data []models.DeveloperRecord `json:"data"`
	Meta PageMeta                 `json:"meta"`
}

// RankedDeveloper is a scored developer with its position in the ranking
type RankedDeveloper struct {
	Rank int `json:"rank"`
	models.DeveloperRecord
}

// RankingPage is one page of the rankings
type RankingPage struct {
	Data []RankedDeveloper `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// DeveloperDetail is a resolved developer and how the name was matched
type DeveloperDetail struct {
	models.DeveloperRecord
	Resolution repository.Resolution `json:"resolution"`
}

// CompareResult holds the resolved developers of a comparison in request order
type CompareResult struct {
	Data      []DeveloperDetail   `json:"data"`
	NotFound  []string            `json:"not_found"`
	Ambiguous map[string][]string `json:"ambiguous,omitempty"`
}

// ProjectPage is one page of a developer's projects
type ProjectPage struct {
	Developer  string                `json:"developer"`
	Resolution repository.Resolution `json:"resolution"`
	Data       []models.ProjectView  `json:"data"`
	Meta       PageMeta              `json:"meta"`
}

// ListDevelopers filters, sorts and pages the developers table
func (s *DeveloperService) ListDevelopers(ctx context.Context, params ListParams) (*DeveloperPage, error) {
	paging, err := params.Paging.resolve(DefaultPerPage, MaxPerPage)
	if err != nil {
		return nil, err
	}

	sortBy := repository.SortScore
	if params.SortBy != "" {
		key, ok := repository.ParseSortKey(params.SortBy)
		if !ok {
			return nil, &models.ValidationError{Field: "sort_by", Value: params.SortBy, Message: "unknown sort_by value"}
		}
		sortBy = key
	}

	minProjects := params.MinProjects
	if minProjects == 0 {
		minProjects = 1
	}
	if minProjects < 1 {
		return nil, &models.ValidationError{Field: "min_projects", Value: strconv.Itoa(minProjects), Message: "min_projects must be at least 1"}
	}

	records, total, err := s.developers.QueryDevelopers(ctx, repository.DeveloperFilter{
		Search:      params.Search,
		Region:      params.Region,
		FuelType:    params.FuelType,
		MinProjects: minProjects,
		SortBy:      sortBy,
		Limit:       paging.PerPage,
		Offset:      paging.offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list developers: %w", err)
	}

	return &DeveloperPage{Data: nonNilRecords(records), Meta: newPageMeta(total, paging.Page, paging.PerPage)}, nil
}

// Rankings pages through scored developers only
func (s *DeveloperService) Rankings(ctx context.Context, sortBy string, page Paging) (*RankingPage, error) {
	paging, err := page.resolve(DefaultPerPage, MaxPerPage)
	if err != nil {
		return nil, err
	}

	key := repository.SortScore
	if sortBy != "" {
		k, ok := repository.ParseRankingKey(sortBy)
		if !ok {
			return nil, &models.ValidationError{Field: "sort_by", Value: sortBy, Message: "unknown sort_by value for rankings"}
		}
		key = k
	}

	records, total, err := s.developers.Rankings(ctx, key, paging.PerPage, paging.offset())
	if err != nil {
		return nil, fmt.Errorf("failed to load rankings: %w", err)
	}

	ranked := make([]RankedDeveloper, len(records))
	for i, rec := range records {
		ranked[i] = RankedDeveloper{Rank: paging.offset() + i + 1, DeveloperRecord: rec}
	}
	return &RankingPage{Data: ranked, Meta: newPageMeta(total, paging.Page, paging.PerPage)}, nil
}

// GetDeveloper resolves name with the two-stage lookup
func (s *DeveloperService) GetDeveloper(ctx context.Context, name string) (*DeveloperDetail, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &models.ValidationError{Field: "name", Value: name, Message: "developer name is required"}
	}

	rec, resolution, err := s.developers.FindDeveloper(ctx, name)
	if err != nil {
		return nil, err
	}

	if resolution == repository.ResolutionFuzzy {
		s.logger.Debug(ctx, "[DEVELOPER_FUZZY_MATCH] Partial name resolved", logging.Fields{
			"query":    name,
			"resolved": rec.Name,
		})
	}
	return &DeveloperDetail{DeveloperRecord: *rec, Resolution: resolution}, nil
}

// Compare resolves a comma separated list of 2 to 10 names. Names that do
// not resolve are reported rather than failing the request, unless none do.
func (s *DeveloperService) Compare(ctx context.Context, names string) (*CompareResult, error) {
	var requested []string
	for _, n := range strings.Split(names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			requested = append(requested, n)
		}
	}
	if len(requested) < MinCompareNames || len(requested) > MaxCompareNames {
		return nil, &models.ValidationError{
			Field:   "names",
			Value:   names,
			Message: fmt.Sprintf("provide %d-%d developer names", MinCompareNames, MaxCompareNames),
		}
	}

	result := &CompareResult{Data: []DeveloperDetail{}, NotFound: []string{}}
	seen := make(map[string]struct{}, len(requested))

	for _, name := range requested {
		detail, err := s.GetDeveloper(ctx, name)

		var notFound *repository.NotFoundError
		var ambiguous *repository.AmbiguousError
		switch {
		case errors.As(err, &notFound):
			result.NotFound = append(result.NotFound, name)
			continue
		case errors.As(err, &ambiguous):
			result.NotFound = append(result.NotFound, name)
			if result.Ambiguous == nil {
				result.Ambiguous = make(map[string][]string)
			}
			result.Ambiguous[name] = ambiguous.Candidates
			continue
		case err != nil:
			return nil, err
		}

		if _, dup := seen[detail.Name]; dup {
			continue
		}
		seen[detail.Name] = struct{}{}
		result.Data = append(result.Data, *detail)
	}

	if len(result.Data) == 0 {
		return nil, &repository.NotFoundError{Resource: "developer", ID: strings.Join(requested, ", ")}
	}
	return result, nil
}

// DeveloperProjects pages through a resolved developer's projects, newest first
func (s *DeveloperService) DeveloperProjects(ctx context.Context, name string, page Paging) (*ProjectPage, error) {
	paging, err := page.resolve(DefaultProjectsPerPage, MaxProjectsPerPage)
	if err != nil {
		return nil, err
	}

	detail, err := s.GetDeveloper(ctx, name)
	if err != nil {
		return nil, err
	}

	projects, total, err := s.projects.ListDeveloperProjects(ctx, repository.ProjectFilter{
		Developer: detail.Name,
		Limit:     paging.PerPage,
		Offset:    paging.offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	views := make([]models.ProjectView, len(projects))
	for i := range projects {
		views[i] = projects[i].View()
	}
	return &ProjectPage{
		Developer:  detail.Name,
		Resolution: detail.Resolution,
		Data:       views,
		Meta:       newPageMeta(total, paging.Page, paging.PerPage),
	}, nil
}

func nonNilRecords(records []models.DeveloperRecord) []models.DeveloperRecord {
	if records == nil {
		return []models.DeveloperRecord{}
	}
	return records
}
