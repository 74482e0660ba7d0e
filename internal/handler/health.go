package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout bounds each dependency ping
const healthTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger func(ctx context.Context) error

// HealthHandler reports store connectivity
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a health handler over the named checks
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. Any failing check turns the response 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := healthReport{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, ping := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := ping(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("Health check failed", "check", name, "error", err)
			report.Checks[name] = "unavailable"
			report.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		report.Checks[name] = "ok"
	}

	WriteJSON(w, status, report)
}
