package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/campus-events/internal/domain/event"
)

type record struct {
	event event.Event
	image *event.Image
	seq   uint64
}

// EventRepository はプロセス内に保持するイベントリポジトリ
// 開発環境とテストで PostgreSQL の代わりに使う
type EventRepository struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     uint64
	now     func() time.Time
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository() *EventRepository {
	return &EventRepository{
		records: make(map[string]*record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// 呼び出し側が返却値を書き換えても保存内容に影響しないようコピーする
func (r *record) snapshot() *event.Event {
	e := r.event
	if r.event.Image != nil {
		info := *r.event.Image
		e.Image = &info
	}
	return &e
}

func copyImage(img *event.Image) *event.Image {
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	return &event.Image{Data: data, ContentType: img.ContentType}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event, img *event.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.seq++
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = 0
	e.Image = nil

	rec := &record{seq: r.seq}
	if img != nil {
		rec.image = copyImage(img)
		e.Image = img.Info()
	}
	rec.event = *e
	r.records[e.ID] = rec
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return rec.snapshot(), nil
}

// List は全イベントを作成日時の降順で取得する
func (r *EventRepository) List(ctx context.Context) ([]*event.Event, error) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	// 同一時刻に作成された場合は後から作成したものを先にする
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.event.CreatedAt.Equal(b.event.CreatedAt) {
			return a.event.CreatedAt.After(b.event.CreatedAt)
		}
		return a.seq > b.seq
	})

	events := make([]*event.Event, len(recs))
	for i, rec := range recs {
		events[i] = rec.snapshot()
	}
	return events, nil
}

// Update はイベントを更新する
func (r *EventRepository) Update(ctx context.Context, e *event.Event, img *event.Image, checkVersion bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	if checkVersion && rec.event.Version != e.Version {
		return event.ErrVersionConflict
	}

	e.CreatedAt = rec.event.CreatedAt
	e.Version = rec.event.Version + 1
	e.UpdatedAt = r.now()
	if img != nil {
		rec.image = copyImage(img)
		e.Image = img.Info()
	} else if rec.event.Image != nil {
		info := *rec.event.Image
		e.Image = &info
	} else {
		e.Image = nil
	}
	rec.event = *e
	return nil
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return event.ErrEventNotFound
	}
	delete(r.records, id)
	return nil
}

// GetImage はイベントの画像本体を取得する
func (r *EventRepository) GetImage(ctx context.Context, id string) (*event.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	if rec.image == nil {
		return nil, event.ErrImageNotFound
	}
	return copyImage(rec.image), nil
}

// Ping はヘルスチェック用。常に成功する
func (r *EventRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ event.Repository = (*EventRepository)(nil)
