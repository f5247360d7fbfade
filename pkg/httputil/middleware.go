package httputil

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/citymarket/gateward/pkg/contextkeys"
)

// RequestID assigns a UUID to every request, exposing it via context and
// the X-Request-ID response header. An inbound X-Request-ID is honored so
// upstream proxies can correlate.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StatusRecorder wraps http.ResponseWriter to capture the final status code
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// NewStatusRecorder wraps w, defaulting the status to 200 for handlers
// that never call WriteHeader explicitly.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

// WriteHeader records the status code before delegating
func (sr *StatusRecorder) WriteHeader(code int) {
	sr.Status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Logging logs each request with method, path, status, and duration
func Logging(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.Status,
				"duration":   time.Since(start).String(),
				"request_id": contextkeys.GetRequestID(r.Context()),
			}).Info("request handled")
		})
	}
}

// Recovery converts handler panics into a 500 rejection
func Recovery(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"panic":      err,
						"stack":      string(debug.Stack()),
						"request_id": contextkeys.GetRequestID(r.Context()),
					}).Error("handler panic recovered")
					WriteInternalFault(w, "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
