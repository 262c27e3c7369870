package httpapi

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck 依赖探活（Postgres ping、Redis ping 等）
type HealthCheck func(ctx context.Context) error

// HealthHandler GET /healthz
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, FailWith("unhealthy", status))
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
