package observability

import (
	"context"
	"net/http"
	"time"
)

// Checker probes one dependency
type Checker func(ctx context.Context) error

// HealthHandler serves /healthz, reporting 200 when every registered
// checker passes and 503 otherwise. Checkers are registered once at
// startup before the listener starts.
type HealthHandler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHealthHandler creates an empty health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checkers: make(map[string]Checker),
		timeout:  2 * time.Second,
	}
}

// Register adds a named dependency checker
func (h *HealthHandler) Register(name string, c Checker) {
	h.checkers[name] = c
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	body := "ok"
	for name, check := range h.checkers {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = name + ": " + err.Error()
			break
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
