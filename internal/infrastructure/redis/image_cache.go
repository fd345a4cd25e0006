package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

const (
	fieldContentType = "content_type"
	fieldData        = "data"
)

// ImageCache はイベント画像をRedisのハッシュとしてキャッシュする
type ImageCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewImageCache は新しいImageCacheインスタンスを作成する
// ttl が0以下の場合は有効期限を設定しない。m は nil でもよい
func NewImageCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *ImageCache {
	return &ImageCache{client: client, ttl: ttl, metrics: m}
}

// Get はイベント画像をキャッシュから取得する
func (c *ImageCache) Get(ctx context.Context, eventID string) (*event.Image, error) {
	vals, err := c.client.HGetAll(ctx, c.imageKey(eventID)).Result()
	if err != nil {
		c.metrics.RecordCacheLookup("redis", "error")
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	// 存在しないキーは空のマップになる
	data, ok := vals[fieldData]
	if !ok || vals[fieldContentType] == "" {
		c.metrics.RecordCacheLookup("redis", "miss")
		return nil, event.ErrCacheMiss
	}
	c.metrics.RecordCacheLookup("redis", "hit")
	return &event.Image{Data: []byte(data), ContentType: vals[fieldContentType]}, nil
}

// Set はイベント画像をキャッシュに保存する
func (c *ImageCache) Set(ctx context.Context, eventID string, img *event.Image) error {
	key := c.imageKey(eventID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldContentType, img.ContentType, fieldData, img.Data)
		if c.ttl > 0 {
			pipe.PExpire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベント画像のキャッシュを無効化する
func (c *ImageCache) Invalidate(ctx context.Context, eventID string) error {
	err := c.client.Del(ctx, c.imageKey(eventID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ImageCache) imageKey(eventID string) string {
	return fmt.Sprintf("events:image:%s", eventID)
}

var _ event.ImageCache = (*ImageCache)(nil)
