package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/services"
	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// DeveloperQueries is the read side the API serves
type DeveloperQueries interface {
	ListDevelopers(ctx context.Context, params services.ListParams) (*services.DeveloperPage, error)
	Rankings(ctx context.Context, sortBy string, page services.Paging) (*services.RankingPage, error)
	GetDeveloper(ctx context.Context, name string) (*services.DeveloperDetail, error)
	Compare(ctx context.Context, names string) (*services.CompareResult, error)
	DeveloperProjects(ctx context.Context, name string, page services.Paging) (*services.ProjectPage, error)
}

// StatsProvider computes corpus statistics
type StatsProvider interface {
	GetStats(ctx context.Context) (*services.CorpusStats, error)
}

// HealthChecker reports whether the store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DeveloperHandler handles the developer reliability API
type DeveloperHandler struct {
	developers DeveloperQueries
	stats      StatsProvider
	health     HealthChecker
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewDeveloperHandler creates a new developer handler
func NewDeveloperHandler(
	developers DeveloperQueries,
	stats StatsProvider,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DeveloperHandler {
	return &DeveloperHandler{
		developers: developers,
		stats:      stats,
		health:     health,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Code       int      `json:"code"`
	Candidates []string `json:"candidates,omitempty"`
}

// DataResponse wraps a single resource
type DataResponse struct {
	Data interface{} `json:"data"`
}

// ListDevelopers handles GET /v1/developers
func (h *DeveloperHandler) ListDevelopers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	paging, err := parsePaging(r)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	minProjects, err := positiveParam(r, "min_projects")
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	page, err := h.developers.ListDevelopers(r.Context(), services.ListParams{
		Search:      q.Get("search"),
		Region:      q.Get("region"),
		FuelType:    q.Get("fuel_type"),
		MinProjects: minProjects,
		SortBy:      q.Get("sort_by"),
		Paging:      paging,
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, page, http.StatusOK)
}

// Rankings handles GET /v1/developers/rankings
func (h *DeveloperHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	paging, err := parsePaging(r)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	page, err := h.developers.Rankings(r.Context(), r.URL.Query().Get("sort_by"), paging)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, page, http.StatusOK)
}

// Compare handles GET /v1/developers/compare
func (h *DeveloperHandler) Compare(w http.ResponseWriter, r *http.Request) {
	result, err := h.developers.Compare(r.Context(), r.URL.Query().Get("names"))
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, result, http.StatusOK)
}

// GetDeveloper handles GET /v1/developers/{name}
func (h *DeveloperHandler) GetDeveloper(w http.ResponseWriter, r *http.Request) {
	detail, err := h.developers.GetDeveloper(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, DataResponse{Data: detail}, http.StatusOK)
}

// DeveloperProjects handles GET /v1/developers/{name}/projects
func (h *DeveloperHandler) DeveloperProjects(w http.ResponseWriter, r *http.Request) {
	paging, err := parsePaging(r)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	page, err := h.developers.DeveloperProjects(r.Context(), mux.Vars(r)["name"], paging)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, page, http.StatusOK)
}

// GetStats handles GET /v1/stats
func (h *DeveloperHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	h.sendJSON(w, r, stats, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DeveloperHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "degraded"
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, r, status, code)
}

// sendJSON sends a JSON response
func (h *DeveloperHandler) sendJSON(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error(r.Context(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"path": r.URL.Path,
		}, err)
	}
}

// sendServiceError maps typed errors to status codes; anything else is a 500
func (h *DeveloperHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *models.ValidationError
		notFound   *repository.NotFoundError
		ambiguous  *repository.AmbiguousError
	)

	route := routeTemplate(r)
	resp := ErrorResponse{Message: err.Error()}

	switch {
	case errors.As(err, &validation):
		resp.Code = http.StatusBadRequest
		h.metrics.RecordAPIError("validation_error", route)
	case errors.As(err, &notFound):
		resp.Code = http.StatusNotFound
		h.metrics.RecordAPIError("not_found", route)
	case errors.As(err, &ambiguous):
		resp.Code = http.StatusConflict
		resp.Candidates = ambiguous.Candidates
		h.metrics.RecordAPIError("ambiguous", route)
	default:
		resp.Code = http.StatusInternalServerError
		resp.Message = "internal server error"
		h.metrics.RecordAPIError("internal_error", route)
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"route": route,
			"query": r.URL.RawQuery,
		}, err)
	}

	resp.Error = http.StatusText(resp.Code)
	h.sendJSON(w, r, resp, resp.Code)
}

func parsePaging(r *http.Request) (services.Paging, error) {
	page, err := positiveParam(r, "page")
	if err != nil {
		return services.Paging{}, err
	}
	perPage, err := positiveParam(r, "per_page")
	if err != nil {
		return services.Paging{}, err
	}
	return services.Paging{Page: page, PerPage: perPage}, nil
}

// positiveParam returns 0 when key is absent and an error unless it is an integer >= 1
func positiveParam(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, &models.ValidationError{Field: key, Value: raw, Message: key + " must be a positive integer"}
	}
	return v, nil
}

// RegisterRoutes registers the API routes; auth applies to the /v1 subrouter only
func (h *DeveloperHandler) RegisterRoutes(router *mux.Router, auth mux.MiddlewareFunc) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/docs", SwaggerUI).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(auth)
	// fixed paths first so they are not captured by {name}
	v1.HandleFunc("/developers", h.ListDevelopers).Methods(http.MethodGet)
	v1.HandleFunc("/developers/rankings", h.Rankings).Methods(http.MethodGet)
	v1.HandleFunc("/developers/compare", h.Compare).Methods(http.MethodGet)
	v1.HandleFunc("/developers/{name}", h.GetDeveloper).Methods(http.MethodGet)
	v1.HandleFunc("/developers/{name}/projects", h.DeveloperProjects).Methods(http.MethodGet)
	v1.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
}
