package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/campus-events/internal/domain/event"
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var errLockNotOwned = errors.New("ロックの所有者ではありません")

// EventLocker はイベント単位の分散ロック
// 複数インスタンスで同じイベントの更新・削除が交錯しないようにする
type EventLocker struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewEventLocker はEventLockerを作成する
func NewEventLocker(client *redis.Client) *EventLocker {
	return &EventLocker{
		client:     client,
		ttl:        10 * time.Second,
		maxRetries: 5,
		retryDelay: 100 * time.Millisecond,
	}
}

// Lock はイベントのロックをリトライ付きで取得し、解放関数を返す
// 取得できなかった場合は event.ErrEventLocked を返す
func (l *EventLocker) Lock(ctx context.Context, eventID string) (func(context.Context) error, error) {
	key := l.lockKey(eventID)
	token := uuid.NewString()

	for i := 0; i < l.maxRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		if ok {
			return func(ctx context.Context) error { return l.release(ctx, key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return nil, event.ErrEventLocked
}

func (l *EventLocker) release(ctx context.Context, key, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return errLockNotOwned
	}
	return nil
}

func (l *EventLocker) lockKey(eventID string) string {
	return fmt.Sprintf("lock:event:%s", eventID)
}
