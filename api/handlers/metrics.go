package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
)

// Metrics serves the in-process route metrics
type Metrics struct {
	Collector *api.MetricsCollector
}

// formatRoutes converts duration fields to milliseconds for JSON serialization
func formatRoutes(routes []api.RouteMetrics) []map[string]interface{} {
	result := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		result[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTime":     route.AvgTime.Milliseconds(),
			"minTime":     route.MinTime.Milliseconds(),
			"maxTime":     route.MaxTime.Milliseconds(),
			"p50Time":     route.P50Time.Milliseconds(),
			"p95Time":     route.P95Time.Milliseconds(),
			"p99Time":     route.P99Time.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}
	return result
}

func formatTraces(traces []api.RequestTrace) []map[string]interface{} {
	result := make([]map[string]interface{}, len(traces))
	for i, trace := range traces {
		result[i] = map[string]interface{}{
			"requestId": trace.RequestID,
			"method":    trace.Method,
			"path":      trace.Path,
			"status":    trace.Status,
			"startTime": trace.StartTime,
			"duration":  trace.Duration.Milliseconds(),
		}
	}
	return result
}

// MetricsHandler returns the summary, the slowest and most frequent routes and
// the most recent traces. ?limit= caps each list (default 20).
func (m Metrics) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": m.Collector.Summary(),
		"routes": map[string]interface{}{
			"slowest":      formatRoutes(m.Collector.Routes(api.SortSlowest, limit)),
			"mostFrequent": formatRoutes(m.Collector.Routes(api.SortFrequent, limit)),
		},
		"recentTraces": formatTraces(m.Collector.Traces(limit)),
	})
}
