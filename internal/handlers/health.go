package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/tourney/pkg/http"
)

// HealthCheck is a named dependency probe
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse reports overall and per-dependency health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler serves the health endpoint
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Health probes every dependency and returns 503 if any is down
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("health check failed",
				slog.String("check", check.Name),
				slog.Any("error", err))
			resp.Status = "unhealthy"
			resp.Checks[check.Name] = "down"
			continue
		}
		resp.Checks[check.Name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	pkghttp.WriteJSON(w, status, resp)
}
