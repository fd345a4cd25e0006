package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/campus-events/internal/config"
	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Ping(ctx, client); err != nil {
		client.Close()
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestImageCache_GetSetInvalidate(t *testing.T) {
	client := setupTestRedis(t)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := NewImageCache(client, 30*time.Second, m)
	ctx := context.Background()
	eventID := uuid.NewString()
	t.Cleanup(func() { _ = cache.Invalidate(ctx, eventID) })

	t.Run("キャッシュミス時はErrCacheMissを返す", func(t *testing.T) {
		_, err := cache.Get(ctx, eventID)
		assert.ErrorIs(t, err, event.ErrCacheMiss)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ImageCacheLookups.WithLabelValues("redis", "miss")))
	})

	t.Run("キャッシュにセットした画像を取得できる", func(t *testing.T) {
		img := &event.Image{Data: []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}, ContentType: "image/png"}
		require.NoError(t, cache.Set(ctx, eventID, img))

		got, err := cache.Get(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, img, got)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.ImageCacheLookups.WithLabelValues("redis", "hit")))
	})

	t.Run("キャッシュを無効化できる", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, eventID))

		_, err := cache.Get(ctx, eventID)
		assert.ErrorIs(t, err, event.ErrCacheMiss)
	})

	t.Run("存在しないキーの無効化はエラーにならない", func(t *testing.T) {
		assert.NoError(t, cache.Invalidate(ctx, uuid.NewString()))
	})
}

func TestImageCache_TTL(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewImageCache(client, 100*time.Millisecond, nil)
	ctx := context.Background()
	eventID := uuid.NewString()

	t.Run("TTL経過後はキャッシュミスになる", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, eventID, &event.Image{Data: []byte{1}, ContentType: "image/jpeg"}))

		// TTL経過前
		_, err := cache.Get(ctx, eventID)
		require.NoError(t, err)

		// TTL経過後
		time.Sleep(150 * time.Millisecond)
		_, err = cache.Get(ctx, eventID)
		assert.ErrorIs(t, err, event.ErrCacheMiss)
	})
}
