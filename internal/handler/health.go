package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/axlan/dice-logger/pkg/apierror"
	"github.com/axlan/dice-logger/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the health endpoints and their dependencies.
type Handler struct {
	store     Pinger
	version   string
	startTime time.Time
}

// New creates a new handler. store may be nil.
func New(store Pinger, version string) *Handler {
	return &Handler{store: store, version: version, startTime: time.Now()}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	MemoryMB      float64   `json:"memory_mb"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		MemoryMB:      float64(int(float64(memStats.Alloc)/1024/1024*100)) / 100,
	}
	w.Header().Set("Cache-Control", "no-store")
	response.OK(w, resp)
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Ready handles GET /api/v1/ready. It fails with 503 when the store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	check := Check{Name: "store", Status: "ok"}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			response.Error(w, apierror.ServiceUnavailable("store unreachable"))
			return
		}
	}
	response.OK(w, map[string]interface{}{
		"ready":  true,
		"checks": []Check{check},
	})
}
