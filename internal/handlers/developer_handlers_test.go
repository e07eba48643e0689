package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/services"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

const testKey = "test-key"

type stubDevelopers struct {
	listParams  services.ListParams
	rankSort    string
	rankPage    services.Paging
	detailName  string
	compareArg  string
	projectsArg string
	projectPage services.Paging
	err         error
}

func (s *stubDevelopers) ListDevelopers(ctx context.Context, params services.ListParams) (*services.DeveloperPage, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &services.DeveloperPage{Data: []models.DeveloperRecord{}, Meta: services.PageMeta{Page: 1, PerPage: 25}}, nil
}

func (s *stubDevelopers) Rankings(ctx context.Context, sortBy string, page services.Paging) (*services.RankingPage, error) {
	s.rankSort, s.rankPage = sortBy, page
	if s.err != nil {
		return nil, s.err
	}
	return &services.RankingPage{Data: []services.RankedDeveloper{}}, nil
}

func (s *stubDevelopers) GetDeveloper(ctx context.Context, name string) (*services.DeveloperDetail, error) {
	s.detailName = name
	if s.err != nil {
		return nil, s.err
	}
	score := 61.1
	return &services.DeveloperDetail{
		DeveloperRecord: models.DeveloperRecord{DeveloperMetrics: models.DeveloperMetrics{Name: name}, Score: &score},
		Resolution:      repository.ResolutionExact,
	}, nil
}

func (s *stubDevelopers) Compare(ctx context.Context, names string) (*services.CompareResult, error) {
	s.compareArg = names
	if s.err != nil {
		return nil, s.err
	}
	return &services.CompareResult{Data: []services.DeveloperDetail{}, NotFound: []string{"x"}}, nil
}

func (s *stubDevelopers) DeveloperProjects(ctx context.Context, name string, page services.Paging) (*services.ProjectPage, error) {
	s.projectsArg, s.projectPage = name, page
	if s.err != nil {
		return nil, s.err
	}
	return &services.ProjectPage{Developer: name, Data: []models.ProjectView{}}, nil
}

type stubStats struct{ err error }

func (s stubStats) GetStats(ctx context.Context) (*services.CorpusStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.CorpusStats{TotalDevelopers: 3, ScoreDistribution: map[string]int{}}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(ctx context.Context) error { return s.err }

type testServer struct {
	router     *mux.Router
	developers *stubDevelopers
	metrics    *metrics.Collector
}

func newTestServer(devErr, statsErr, healthErr error) *testServer {
	logger := logging.NewNopLogger()
	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	developers := &stubDevelopers{err: devErr}

	h := NewDeveloperHandler(developers, stubStats{err: statsErr}, stubHealth{err: healthErr}, logger, collector)
	router := mux.NewRouter()
	router.Use(RequestID, Instrument(collector))
	h.RegisterRoutes(router, APIKeyAuth([]string{"other", testKey}, logger, collector))

	return &testServer{router: router, developers: developers, metrics: collector}
}

func (s *testServer) get(t *testing.T, target string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authed {
		req.Header.Set(APIKeyHeader, testKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuth(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := srv.get(t, "/v1/developers", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 401, decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, srv.get(t, "/v1/stats", true).Code)
	assert.Equal(t, http.StatusOK, srv.get(t, "/health", false).Code, "health needs no key")
	assert.Equal(t, http.StatusOK, srv.get(t, "/openapi.json", false).Code)
}

func TestListDevelopers_PassesParams(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := srv.get(t, "/v1/developers?search=acme&region=PJM&fuel_type=solar&min_projects=3&sort_by=name&page=2&per_page=10", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.Equal(t, services.ListParams{
		Search:      "acme",
		Region:      "PJM",
		FuelType:    "solar",
		MinProjects: 3,
		SortBy:      "name",
		Paging:      services.Paging{Page: 2, PerPage: 10},
	}, srv.developers.listParams)
}

func TestListDevelopers_BadParams(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	for _, target := range []string{
		"/v1/developers?page=0",
		"/v1/developers?per_page=abc",
		"/v1/developers?min_projects=-1",
		"/v1/developers/rankings?page=x",
		"/v1/developers/acme/projects?per_page=0",
	} {
		t.Run(target, func(t *testing.T) {
			rec := srv.get(t, target, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Bad Request", decodeError(t, rec).Error)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLabel  string
	}{
		{"validation", &models.ValidationError{Field: "sort_by", Message: "unknown sort_by value"}, http.StatusBadRequest, "validation_error"},
		{"not found", &repository.NotFoundError{Resource: "developer", ID: "x"}, http.StatusNotFound, "not_found"},
		{"ambiguous", &repository.AmbiguousError{Query: "wind", Candidates: []string{"A Wind", "B Wind"}}, http.StatusConflict, "ambiguous"},
		{"wrapped not found", errors.Join(errors.New("ctx"), &repository.NotFoundError{Resource: "developer"}), http.StatusNotFound, "not_found"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.err, nil, nil)

			rec := srv.get(t, "/v1/developers/wind", true)
			require.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantStatus == http.StatusConflict {
				assert.Equal(t, []string{"A Wind", "B Wind"}, resp.Candidates)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", resp.Message)
			}
			assert.Equal(t, float64(1), testutil.ToFloat64(
				srv.metrics.APIErrorsTotal.WithLabelValues(tt.wantLabel, "/v1/developers/{name}")))
		})
	}
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	rec := srv.get(t, "/v1/developers/rankings?sort_by=operational&per_page=5", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operational", srv.developers.rankSort)
	assert.Equal(t, services.Paging{PerPage: 5}, srv.developers.rankPage)
	assert.Empty(t, srv.developers.detailName, "rankings must not route to detail")

	rec = srv.get(t, "/v1/developers/compare?names=a,b", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b", srv.developers.compareArg)

	rec = srv.get(t, "/v1/developers/nextera-energy", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nextera-energy", srv.developers.detailName)
	var detail struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "exact", detail.Data["resolution"])
	assert.Equal(t, 61.1, detail.Data["score"])

	rec = srv.get(t, "/v1/developers/Acme%20Solar/projects?page=3", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme Solar", srv.developers.projectsArg)
	assert.Equal(t, services.Paging{Page: 3}, srv.developers.projectPage)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		srv.metrics.APIRequestsTotal.WithLabelValues("/v1/developers/{name}", "GET", "200")))
}

func TestHealthCheck(t *testing.T) {
	rec := newTestServer(nil, nil, nil).get(t, "/health", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newTestServer(nil, nil, errors.New("no route to host")).get(t, "/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "down", body["database"])
}

func TestOpenAPIDocument(t *testing.T) {
	doc := OpenAPIDocument()
	paths, ok := doc["paths"].(object)
	require.True(t, ok)
	for _, p := range []string{
		"/v1/developers", "/v1/developers/rankings", "/v1/developers/compare",
		"/v1/developers/{name}", "/v1/developers/{name}/projects", "/v1/stats", "/health",
	} {
		assert.Contains(t, paths, p)
	}

	_, err := json.Marshal(doc)
	assert.NoError(t, err)
}

func TestSwaggerUI(t *testing.T) {
	rec := newTestServer(nil, nil, nil).get(t, "/docs", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>Developer Reliability API</title>")
	assert.Contains(t, rec.Body.String(), "swagger-ui-bundle.js")
}
