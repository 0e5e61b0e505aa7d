package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const slowRequest = time.Second

// MetricsMiddleware assigns a request id, times the request and records it
// in mc. Health checks, the metrics endpoint and websocket sessions are not recorded.
func MetricsMiddleware(mc *MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			path := r.URL.Path
			if path == "/health" || path == "/ws" || path == "/api/v1/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			mc.Record(RequestTrace{
				RequestID: requestID,
				Method:    r.Method,
				Path:      path,
				Status:    wrapped.statusCode,
				StartTime: start.UTC(),
				Duration:  duration,
			})

			if duration > slowRequest {
				zap.S().Warnw("slow request",
					"requestId", requestID,
					"method", r.Method,
					"path", path,
					"duration", duration.String(),
					"status", wrapped.statusCode)
			}
		})
	}
}

// responseWriter captures the status code. It implements http.Hijacker so it
// can sit in front of websocket upgrades.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
