package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/studshare-be/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Version is reported by the index and health endpoints.
const Version = "1.0.0"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the API index and the health report.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthReport is the body of GET /api/health.
type HealthReport struct {
	Status   string               `json:"status"`
	Version  string               `json:"version"`
	Database string               `json:"database"`
	Host     monitoring.HostStats `json:"host"`
}

// Index describes the API and its top-level endpoints.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "StudShare API is running!",
		"version": Version,
		"endpoints": map[string]string{
			"listings":  "/api/listings",
			"favorites": "/api/favorites",
			"auth":      "/api/auth",
			"feed":      "/api/ws",
			"health":    "/api/health",
			"metrics":   "/metrics",
		},
	})
}

// Health pings the database and reports host statistics.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := HealthReport{
		Status:   "ok",
		Version:  Version,
		Database: "ok",
		Host:     monitoring.CollectHostStats(ctx),
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database ping failed")
		report.Status = "degraded"
		report.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
