package lru

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

func TestImageCache_GetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := NewImageCache(4, time.Minute, m)
	img := &event.Image{Data: []byte{1, 2, 3}, ContentType: "image/png"}

	_, err := cache.Get(ctx, "e1")
	assert.ErrorIs(t, err, event.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "e1", img))
	got, err := cache.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, img, got)

	require.NoError(t, cache.Invalidate(ctx, "e1"))
	_, err = cache.Get(ctx, "e1")
	assert.ErrorIs(t, err, event.ErrCacheMiss)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ImageCacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ImageCacheLookups.WithLabelValues("memory", "miss")))
}

func TestImageCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	cache := NewImageCache(2, time.Minute, nil)

	require.NoError(t, cache.Set(ctx, "a", &event.Image{Data: []byte{1}, ContentType: "image/png"}))
	require.NoError(t, cache.Set(ctx, "b", &event.Image{Data: []byte{2}, ContentType: "image/png"}))
	_, _ = cache.Get(ctx, "a")
	require.NoError(t, cache.Set(ctx, "c", &event.Image{Data: []byte{3}, ContentType: "image/png"}))

	assert.Equal(t, 2, cache.Len())
	_, err := cache.Get(ctx, "b")
	assert.ErrorIs(t, err, event.ErrCacheMiss)
	_, err = cache.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestImageCache_TTL(t *testing.T) {
	ctx := context.Background()
	cache := NewImageCache(2, 50*time.Millisecond, nil)

	require.NoError(t, cache.Set(ctx, "a", &event.Image{Data: []byte{1}, ContentType: "image/jpeg"}))
	_, err := cache.Get(ctx, "a")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, err = cache.Get(ctx, "a")
	assert.ErrorIs(t, err, event.ErrCacheMiss)
}
