package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/pkg/apierror"
	"github.com/axlan/dice-logger/pkg/response"
)

// StatsProvider exposes store statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     StatsProvider
	cacheType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store StatsProvider, cacheType string) *AdminHandler {
	return &AdminHandler{
		store:     store,
		cacheType: cacheType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.store.Stats(r.Context())
	if err != nil {
		logging.Component("http").Error().Err(err).Msg("store stats failed")
		response.Error(w, apierror.InternalError("failed to read store statistics"))
		return
	}

	stats := make(map[string]interface{})
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["cache_type"] = h.cacheType
	stats["store"] = storeStats

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
