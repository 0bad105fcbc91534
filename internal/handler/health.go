package handler

import (
	"net/http"
	"time"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/pkg/apierror"
	"restaurant-ops-api/pkg/response"
)

// StatusSource provides the latest polled system status.
type StatusSource interface {
	Snapshot() model.SystemStatus
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	version   string
	status    StatusSource
	startTime time.Time
}

// New creates a new handler. status may be nil when no monitor runs.
func New(version string, status StatusSource) *Handler {
	return &Handler{
		version:   version,
		status:    status,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	response.OK(w, resp)
}

// StatusResponse is the latest probe results plus process uptime.
type StatusResponse struct {
	model.SystemStatus
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Status handles GET /api/v1/status. A failing probe turns the response into a 503
// that names each failing probe.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SystemStatus:  model.SystemStatus{Healthy: true, Probes: []model.ProbeResult{}},
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.status != nil {
		resp.SystemStatus = h.status.Snapshot()
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if !resp.Healthy {
		var failing []apierror.FieldError
		for _, p := range resp.Probes {
			if !p.Healthy {
				failing = append(failing, apierror.FieldError{Field: p.Name, Message: p.Error})
			}
		}
		response.Error(w, apierror.ServiceUnavailable("one or more probes failed").WithDetails(failing...))
		return
	}
	response.OK(w, resp)
}
