package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/portico/internal/metrics"
)

const healthTimeout = 3 * time.Second

// rootHandler handles GET /, the liveness probe.
func rootHandler(_ *http.Request) (*Response, error) {
	return &Response{Status: http.StatusOK, Body: map[string]string{
		"status":  "ok",
		"message": "Portico API is running",
	}}, nil
}

// healthHandler handles GET /health by pinging the data store.
type healthHandler struct {
	db Pinger
}

func newHealthHandler(db Pinger) *healthHandler {
	return &healthHandler{db: db}
}

func (h *healthHandler) Handle(r *http.Request) (*Response, error) {
	if h.db == nil {
		return &Response{Status: http.StatusOK, Body: map[string]string{
			"status":   "ok",
			"database": "unknown",
		}}, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("health check: database unreachable", "error", err)
		return &Response{Status: http.StatusServiceUnavailable, Body: map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		}}, nil
	}
	return &Response{Status: http.StatusOK, Body: map[string]string{
		"status":   "ok",
		"database": "connected",
	}}, nil
}

// metricsHandler handles GET /api/metrics.
type metricsHandler struct {
	metrics *metrics.Metrics
}

func newMetricsHandler(m *metrics.Metrics) *metricsHandler {
	return &metricsHandler{metrics: m}
}

func (h *metricsHandler) Handle(_ *http.Request) (*Response, error) {
	summary, err := h.metrics.Summary()
	if err != nil {
		return nil, fmt.Errorf("building metrics summary: %w", err)
	}
	return &Response{Status: http.StatusOK, Body: summary}, nil
}
