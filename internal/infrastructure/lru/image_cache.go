package lru

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

// ImageCache はプロセス内のLRUで画像をキャッシュする
// インスタンスごとに独立しているため、複数台構成では redis 実装を使う
type ImageCache struct {
	cache   *expirable.LRU[string, *event.Image]
	metrics *metrics.Metrics
}

// NewImageCache は最大件数と有効期限を指定してImageCacheを作成する
// ttl が0以下の場合は期限切れにならない
func NewImageCache(size int, ttl time.Duration, m *metrics.Metrics) *ImageCache {
	if size <= 0 {
		size = 1
	}
	return &ImageCache{
		cache:   expirable.NewLRU[string, *event.Image](size, nil, ttl),
		metrics: m,
	}
}

// Get はイベント画像をキャッシュから取得する
func (c *ImageCache) Get(_ context.Context, eventID string) (*event.Image, error) {
	img, ok := c.cache.Get(eventID)
	if !ok {
		c.metrics.RecordCacheLookup("memory", "miss")
		return nil, event.ErrCacheMiss
	}
	c.metrics.RecordCacheLookup("memory", "hit")
	return img, nil
}

// Set はイベント画像をキャッシュに保存する
func (c *ImageCache) Set(_ context.Context, eventID string, img *event.Image) error {
	c.cache.Add(eventID, img)
	return nil
}

// Invalidate はイベント画像のキャッシュを無効化する
func (c *ImageCache) Invalidate(_ context.Context, eventID string) error {
	c.cache.Remove(eventID)
	return nil
}

// Len はキャッシュされている件数を返す
func (c *ImageCache) Len() int {
	return c.cache.Len()
}

var _ event.ImageCache = (*ImageCache)(nil)
