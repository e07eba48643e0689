package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"reliability-platform/pkg/logging"
	"reliability-platform/pkg/metrics"
)

// APIKeyHeader carries the client key on /v1 requests
const APIKeyHeader = "X-API-Key"

// RequestIDHeader echoes the request ID back to clients
const RequestIDHeader = "X-Request-ID"

// RequestID tags the request context with the caller's X-Request-ID or a new UUID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// Instrument records request count and latency per route template
func Instrument(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			route := routeTemplate(r)
			collector.APIRequestDuration.WithLabelValues(route).Observe(m.Duration.Seconds())
			collector.RecordAPIRequest(route, r.Method, strconv.Itoa(m.Code))
		})
	}
}

// APIKeyAuth rejects requests whose X-API-Key is not one of keys
func APIKeyAuth(keys []string, logger *logging.StructuredLogger, collector *metrics.Collector) mux.MiddlewareFunc {
	accepted := make([][]byte, len(keys))
	for i, k := range keys {
		accepted[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(r.Header.Get(APIKeyHeader))
			if len(presented) > 0 {
				for _, k := range accepted {
					if subtle.ConstantTimeCompare(presented, k) == 1 {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			route := routeTemplate(r)
			collector.RecordAPIError("unauthorized", route)
			logger.Warn(r.Context(), "[API_AUTH_REJECTED] Missing or invalid API key", logging.Fields{
				"route":       route,
				"key_present": len(presented) > 0,
			})

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"missing or invalid API key","code":401}` + "\n"))
		})
	}
}

// routeTemplate labels metrics by mux path template so {name} values do not
// explode label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
