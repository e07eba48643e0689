package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the binaries export
type Collector struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	IngestionRecordsTotal prometheus.Counter
	IngestionSkippedTotal prometheus.Counter
	IngestionDuration     prometheus.Histogram
	IngestionErrorsTotal  *prometheus.CounterVec
	IngestionBatchSize    prometheus.Histogram

	ScoringRunDuration         prometheus.Histogram
	ProjectsAggregatedTotal    prometheus.Counter
	DevelopersScoredTotal      prometheus.Counter
	DevelopersUnqualifiedTotal prometheus.Counter
	ScoringRunsTotal           *prometheus.CounterVec

	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector registers the application metrics with reg. Passing
// prometheus.DefaultRegisterer exposes them on promhttp.Handler; tests pass a
// fresh registry so collectors can be built more than once per process.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	b := builder{factory: promauto.With(reg), namespace: namespace}

	requestBuckets := []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5}
	queryBuckets := prometheus.ExponentialBuckets(0.001, 2, 10)

	return &Collector{
		APIRequestsTotal:   b.counterVec("api_requests_total", "API requests by route template, method and status", "endpoint", "method", "status"),
		APIRequestDuration: b.histogramVec("api_request_duration_seconds", "API request latency by route template", requestBuckets, "endpoint"),
		APIErrorsTotal:     b.counterVec("api_errors_total", "API error responses by error type and route", "error_type", "endpoint"),

		IngestionRecordsTotal: b.counter("ingestion_projects_loaded_total", "Queue projects copied from the source database"),
		IngestionSkippedTotal: b.counter("ingestion_projects_skipped_total", "Source rows rejected during ingestion"),
		IngestionDuration:     b.histogram("ingestion_duration_seconds", "Wall time of an ingestion run", []float64{1, 5, 10, 30, 60, 120, 300, 600}),
		IngestionErrorsTotal:  b.counterVec("ingestion_errors_total", "Ingestion problems by kind", "error_type"),
		IngestionBatchSize:    b.histogram("ingestion_batch_size", "Projects per bulk copy batch", prometheus.ExponentialBuckets(100, 4, 6)),

		ScoringRunDuration:         b.histogram("scoring_run_duration_seconds", "Wall time of a full aggregate and score run", []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}),
		ProjectsAggregatedTotal:    b.counter("projects_aggregated_total", "Project records folded into developer metrics"),
		DevelopersScoredTotal:      b.counter("developers_scored_total", "Developers that received a composite score"),
		DevelopersUnqualifiedTotal: b.counter("developers_unqualified_total", "Developers left unscored for lack of resolved projects"),
		ScoringRunsTotal:           b.counterVec("scoring_runs_total", "Scoring runs by outcome", "outcome"),

		DBQueryDuration:  b.histogramVec("db_query_duration_seconds", "Database latency by query type", queryBuckets, "query_type"),
		DBConnectionPool: b.gaugeVec("db_connection_pool", "Connection pool sizes by state (in_use, idle, total)", "state"),
		DBErrorsTotal:    b.counterVec("db_errors_total", "Database errors by statement kind", "error_type"),
	}
}

// builder stamps the shared namespace onto every metric
type builder struct {
	factory   promauto.Factory
	namespace string
}

func (b builder) counter(name, help string) prometheus.Counter {
	return b.factory.NewCounter(prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help})
}

func (b builder) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help}, labels)
}

func (b builder) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return b.factory.NewHistogram(prometheus.HistogramOpts{Namespace: b.namespace, Name: name, Help: help, Buckets: buckets})
}

func (b builder) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{Namespace: b.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

func (b builder) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(prometheus.GaugeOpts{Namespace: b.namespace, Name: name, Help: help}, labels)
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordIngestionError increments ingestion error counter
func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordScoringRun records the outcome counts of one run
func (c *Collector) RecordScoringRun(projects, scored, unqualified int, err error) {
	if err != nil {
		c.ScoringRunsTotal.WithLabelValues("failed").Inc()
		return
	}
	c.ScoringRunsTotal.WithLabelValues("succeeded").Inc()
	c.ProjectsAggregatedTotal.Add(float64(projects))
	c.DevelopersScoredTotal.Add(float64(scored))
	c.DevelopersUnqualifiedTotal.Add(float64(unqualified))
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
