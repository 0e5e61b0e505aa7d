package api

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestTrace records one served request
type RequestTrace struct {
	RequestID string        `json:"requestId"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

// RouteMetrics aggregates the traces of one method and normalized path
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	P50Time     time.Duration `json:"p50Time"`
	P95Time     time.Duration `json:"p95Time"`
	P99Time     time.Duration `json:"p99Time"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsSummary is the overall view of the collector
type MetricsSummary struct {
	TotalRequests int64     `json:"totalRequests"`
	TotalErrors   int64     `json:"totalErrors"`
	ErrorRate     float64   `json:"errorRate"`
	Since         time.Time `json:"since"`
	RouteCount    int       `json:"routeCount"`
	TraceCount    int       `json:"traceCount"`
}

// Route orderings accepted by Routes
const (
	SortSlowest  = "slowest"
	SortFrequent = "frequent"
)

// MetricsCollector keeps per-route aggregates and the most recent traces in memory
type MetricsCollector struct {
	mu            sync.RWMutex
	traces        []RequestTrace
	maxTraces     int
	routes        map[string]*RouteMetrics
	since         time.Time
	totalRequests int64
	totalErrors   int64
}

// NewMetricsCollector keeps at most maxTraces recent traces
func NewMetricsCollector(maxTraces int) *MetricsCollector {
	if maxTraces <= 0 {
		maxTraces = 10000
	}
	return &MetricsCollector{
		traces:    make([]RequestTrace, 0, maxTraces),
		maxTraces: maxTraces,
		routes:    make(map[string]*RouteMetrics),
		since:     time.Now().UTC(),
	}
}

// Record adds a trace
func (mc *MetricsCollector) Record(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.traces) >= mc.maxTraces {
		mc.traces = mc.traces[1:]
	}
	mc.traces = append(mc.traces, trace)

	key := routeKey(trace)
	m, ok := mc.routes[key]
	if !ok {
		m = &RouteMetrics{Method: trace.Method, Path: normalizeRoutePath(trace.Path), MinTime: trace.Duration}
		mc.routes[key] = m
	}
	m.Count++
	m.TotalTime += trace.Duration
	m.AvgTime = m.TotalTime / time.Duration(m.Count)
	m.LastRequest = trace.StartTime
	if trace.Duration < m.MinTime {
		m.MinTime = trace.Duration
	}
	if trace.Duration > m.MaxTime {
		m.MaxTime = trace.Duration
	}

	mc.totalRequests++
	if trace.Status >= 400 {
		m.ErrorCount++
		mc.totalErrors++
	}
}

// Summary returns the totals since the collector started
func (mc *MetricsCollector) Summary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := MetricsSummary{
		TotalRequests: mc.totalRequests,
		TotalErrors:   mc.totalErrors,
		Since:         mc.since,
		RouteCount:    len(mc.routes),
		TraceCount:    len(mc.traces),
	}
	if mc.totalRequests > 0 {
		s.ErrorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}
	return s
}

// Routes returns copies of the route aggregates with percentiles filled in,
// ordered by sortBy and cut to limit.
func (mc *MetricsCollector) Routes(sortBy string, limit int) []RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	durations := make(map[string][]time.Duration)
	for _, t := range mc.traces {
		key := routeKey(t)
		durations[key] = append(durations[key], t.Duration)
	}

	routes := make([]RouteMetrics, 0, len(mc.routes))
	for key, m := range mc.routes {
		r := *m
		if d := durations[key]; len(d) > 0 {
			sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
			r.P50Time = percentile(d, 0.50)
			r.P95Time = percentile(d, 0.95)
			r.P99Time = percentile(d, 0.99)
		}
		routes = append(routes, r)
	}

	sort.Slice(routes, func(i, j int) bool {
		if sortBy == SortFrequent {
			return routes[i].Count > routes[j].Count
		}
		return routes[i].AvgTime > routes[j].AvgTime
	})
	if limit > 0 && len(routes) > limit {
		routes = routes[:limit]
	}
	return routes
}

// Traces returns up to limit of the most recent traces, newest first
func (mc *MetricsCollector) Traces(limit int) []RequestTrace {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]RequestTrace, 0, limit)
	for i := len(mc.traces) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mc.traces[i])
	}
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func routeKey(t RequestTrace) string {
	return t.Method + " " + normalizeRoutePath(t.Path)
}

var (
	objectIDSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)
	uuidSegment     = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
)

// normalizeRoutePath replaces id segments with {id}, so
// /api/v1/vehicles/507f1f77bcf86cd799439011/status becomes /api/v1/vehicles/{id}/status
func normalizeRoutePath(path string) string {
	path = objectIDSegment.ReplaceAllString(path, "/{id}$1")
	path = uuidSegment.ReplaceAllString(path, "/{id}$1")
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
