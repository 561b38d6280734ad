package middleware

import (
	"net/http"
	"time"

	"github.com/debtdesk/debtdesk/internal/logging"
)

// Tracing assigns every request a trace ID and logs the completed request.
type Tracing struct {
	logger *logging.Logger
}

// NewTracing creates the tracing middleware.
func NewTracing(logger *logging.Logger) *Tracing {
	return &Tracing{logger: logger}
}

// Handler returns the tracing middleware handler.
func (m *Tracing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}

		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r.WithContext(ctx))

		m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// responseWriter captures the status code written by downstream handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
