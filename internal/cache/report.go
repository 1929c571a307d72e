package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/model"
)

// ReportCache remembers generated reports per window. Windows on the same
// date share one artifact file, so a hit is only served while its window is
// still the last one written under that name.
// Cache errors are logged and treated as misses.
type ReportCache struct {
	cache Cache
	ttl   time.Duration
}

// NewReportCache wraps c. A zero ttl disables caching.
func NewReportCache(c Cache, ttl time.Duration) *ReportCache {
	return &ReportCache{cache: c, ttl: ttl}
}

// WindowKey returns the cache key for [start, end).
func WindowKey(start, end time.Time) string {
	return fmt.Sprintf("report:%d:%d", start.UnixNano(), end.UnixNano())
}

// ArtifactKey returns the cache key recording which window last wrote name.
func ArtifactKey(name string) string {
	return "artifact:" + name
}

// Lookup returns the cached report for the window, if any.
func (r *ReportCache) Lookup(ctx context.Context, start, end time.Time) (*model.Report, bool) {
	if r == nil || r.cache == nil || r.ttl <= 0 {
		return nil, false
	}
	data, err := r.cache.Get(ctx, WindowKey(start, end))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logging.Component("cache").Warn().Err(err).Msg("report cache lookup failed")
		}
		return nil, false
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		logging.Component("cache").Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil, false
	}
	owner, err := r.cache.Get(ctx, ArtifactKey(report.Name))
	if err != nil || string(owner) != WindowKey(start, end) {
		return nil, false
	}
	return &report, true
}

// Claim records that the window [start, end) wrote the artifact name last.
// Call it after every generation, cached or not.
func (r *ReportCache) Claim(ctx context.Context, name string, start, end time.Time) {
	if r == nil || r.cache == nil || r.ttl <= 0 || name == "" {
		return
	}
	if err := r.cache.Set(ctx, ArtifactKey(name), []byte(WindowKey(start, end)), r.ttl); err != nil {
		logging.Component("cache").Warn().Err(err).Msg("report cache claim failed")
	}
}

// Store caches report for the window and claims its artifact name.
func (r *ReportCache) Store(ctx context.Context, start, end time.Time, report *model.Report) {
	if r == nil || r.cache == nil || r.ttl <= 0 || report == nil {
		return
	}
	r.Claim(ctx, report.Name, start, end)
	data, err := json.Marshal(report)
	if err != nil {
		logging.Component("cache").Warn().Err(err).Msg("encode report for cache")
		return
	}
	if err := r.cache.Set(ctx, WindowKey(start, end), data, r.ttl); err != nil {
		logging.Component("cache").Warn().Err(err).Msg("report cache store failed")
	}
}
