package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axlan/dice-logger/internal/model"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(1)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_CloseDropsEntries(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Close())

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestReportCache_RoundTrip(t *testing.T) {
	rc := NewReportCache(NewMemoryCache(1), time.Minute)
	ctx := context.Background()
	start := time.Date(2024, 8, 9, 18, 0, 0, 0, time.UTC)
	end := start.Add(model.ReportWindow)

	_, ok := rc.Lookup(ctx, start, end)
	assert.False(t, ok)

	want := &model.Report{Name: "rolls_2024-08-10.html", Path: "/rolls_2024-08-10.html", Rolls: 3,
		WindowStart: start, WindowEnd: end, GeneratedAt: end}
	rc.Store(ctx, start, end, want)

	got, ok := rc.Lookup(ctx, start, end)
	require.True(t, ok)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Rolls, got.Rolls)
	assert.True(t, want.WindowEnd.Equal(got.WindowEnd))

	_, ok = rc.Lookup(ctx, start, end.Add(time.Second))
	assert.False(t, ok, "different window is a different key")
}

func TestReportCache_ClaimBySiblingWindowMisses(t *testing.T) {
	rc := NewReportCache(NewMemoryCache(1), time.Minute)
	ctx := context.Background()
	day := time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC)
	aStart, aEnd := day.Add(-23*time.Hour), day.Add(time.Hour)
	bStart, bEnd := day.Add(-time.Hour), day.Add(23*time.Hour)
	report := &model.Report{Name: "rolls_2024-08-10.html", Rolls: 1}

	rc.Store(ctx, aStart, aEnd, report)
	_, ok := rc.Lookup(ctx, aStart, aEnd)
	require.True(t, ok)

	rc.Claim(ctx, report.Name, bStart, bEnd)
	_, ok = rc.Lookup(ctx, aStart, aEnd)
	assert.False(t, ok, "artifact now holds window B")

	rc.Store(ctx, aStart, aEnd, report)
	_, ok = rc.Lookup(ctx, aStart, aEnd)
	assert.True(t, ok)
}

func TestReportCache_DisabledAndCorrupt(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1723312800, 0)

	var nilCache *ReportCache
	_, ok := nilCache.Lookup(ctx, now, now)
	assert.False(t, ok)
	nilCache.Store(ctx, now, now, &model.Report{})

	mem := NewMemoryCache(1)
	disabled := NewReportCache(mem, 0)
	disabled.Store(ctx, now, now, &model.Report{Name: "x"})
	_, err := mem.Get(ctx, WindowKey(now, now))
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mem.Set(ctx, WindowKey(now, now), []byte("{not json"), time.Minute))
	_, ok = NewReportCache(mem, time.Minute).Lookup(ctx, now, now)
	assert.False(t, ok)
}

// Runs only when a Redis server is available, e.g. REDIS_ADDR=127.0.0.1:6379.
func TestRedisCache_Live(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisCache(RedisConfig{Addr: addr, KeyPrefix: "dicelogger-test"})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
