package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/logger"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

// EventLister はイベント一覧を返すインターフェース
type EventLister interface {
	ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error)
}

// EventStatsCollector は保存されているイベント数を定期的に集計してゲージに反映するワーカー
type EventStatsCollector struct {
	events   EventLister
	metrics  *metrics.Metrics
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEventStatsCollector は新しいコレクターを作成
func NewEventStatsCollector(events EventLister, m *metrics.Metrics, interval time.Duration) *EventStatsCollector {
	return &EventStatsCollector{
		events:   events,
		metrics:  m,
		interval: interval,
		log:      logger.Named("event_stats"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はコレクターを開始。起動直後に1回集計する
func (c *EventStatsCollector) Start(ctx context.Context) {
	c.log.Info("イベント集計ワーカー開始", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	c.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("イベント集計ワーカー停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			c.log.Info("イベント集計ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// Stop はコレクターを停止し、Start の終了を待つ
func (c *EventStatsCollector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// collect は全イベントをカテゴリ・ステータス別に数える
// 失敗した場合は前回の値を残す
func (c *EventStatsCollector) collect(ctx context.Context) {
	events, err := c.events.ListEvents(ctx, event.Filter{})
	if err != nil {
		c.log.Error("イベント集計に失敗しました", zap.Error(err))
		return
	}

	counts := make(map[metrics.EventCountKey]int)
	withImage := 0
	for _, e := range events {
		counts[metrics.EventCountKey{Category: string(e.Category), Status: string(e.Status)}]++
		if e.HasImage() {
			withImage++
		}
	}
	c.metrics.SetStoredEvents(counts, withImage)
	c.log.Debug("イベントを集計しました", zap.Int("count", len(events)), zap.Int("with_image", withImage))
}
