package client

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/logger"
)

// Lister は一覧を取得する
type Lister interface {
	ListEvents(ctx context.Context, opts ListOptions) ([]Event, error)
}

// EventList はサーバーから取得したイベント一覧と絞り込み条件を保持する
//
// 作成・更新・削除の後は再取得せずに手元の一覧を書き換える。
// 他のクライアントによる変更は次の Refresh まで反映されない。
type EventList struct {
	lister Lister

	mu       sync.Mutex
	events   []Event
	filter   event.Filter
	loading  bool
	err      error
	seq      uint64
	cancel   context.CancelFunc
	closed   bool
	onChange func()
}

func NewEventList(lister Lister) *EventList {
	return &EventList{lister: lister}
}

// OnChange は状態が変わるたびに呼ばれる関数を設定する
// fn はロックの外で呼ばれる
func (l *EventList) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Refresh は一覧を取得し直す
// 実行中の取得はキャンセルされ、その結果は ErrSuperseded として破棄される。
// 失敗した場合はエラーを Err に保持し、以前の一覧は残す（再試行は呼び出し側が行う）
func (l *EventList) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.seq++
	seq := l.seq
	l.cancel = cancel
	l.loading = true
	l.err = nil
	l.mu.Unlock()
	l.notify()

	events, err := l.lister.ListEvents(ctx, ListOptions{})
	cancel()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if seq != l.seq {
		l.mu.Unlock()
		logger.Debug("古い一覧取得の結果を破棄しました", zap.Uint64("seq", seq))
		return ErrSuperseded
	}
	l.cancel = nil
	l.loading = false
	if err != nil {
		l.err = err
	} else {
		l.events = events
	}
	l.mu.Unlock()
	l.notify()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("イベント一覧の取得に失敗しました", zap.Error(err))
	}
	return err
}

// Close は実行中の取得をキャンセルし、以降の結果と変更をすべて無視する
func (l *EventList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.loading = false
	l.onChange = nil
}

func (l *EventList) SetSearch(search string) {
	l.update(func() { l.filter.Search = search })
}

// SetCategory はカテゴリを設定する。"all" または空文字で全件
func (l *EventList) SetCategory(category string) {
	l.update(func() { l.filter.Category = category })
}

func (l *EventList) Filter() event.Filter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter
}

// Visible は絞り込み条件に一致するイベントを一覧の順序のまま返す
func (l *EventList) Visible() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if l.filter.Match(e.Title, e.Description, e.Category) {
			result = append(result, e)
		}
	}
	return result
}

// Events は絞り込み前のすべてのイベントを返す
func (l *EventList) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *EventList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *EventList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Err は直近の Refresh の失敗を返す
func (l *EventList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Added は作成されたイベントを先頭に追加する
func (l *EventList) Added(e Event) {
	l.update(func() {
		l.events = append([]Event{e}, l.events...)
	})
}

// Updated は同じIDのイベントを置き換える
func (l *EventList) Updated(e Event) {
	l.update(func() {
		for i := range l.events {
			if l.events[i].ID == e.ID {
				l.events[i] = e
				return
			}
		}
	})
}

// Removed はイベントを一覧から取り除く
func (l *EventList) Removed(id string) {
	l.update(func() {
		for i := range l.events {
			if l.events[i].ID == id {
				l.events = append(l.events[:i:i], l.events[i+1:]...)
				return
			}
		}
	})
}

func (l *EventList) update(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	fn()
	l.mu.Unlock()
	l.notify()
}

func (l *EventList) notify() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}
