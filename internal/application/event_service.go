package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sanosuguru/campus-events/internal/domain/event"
	"github.com/sanosuguru/campus-events/internal/pkg/logger"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

// 操作名（メトリクスのラベル）
const (
	opCreate   = "create"
	opUpdate   = "update"
	opDelete   = "delete"
	opGetImage = "get_image"
)

// imageLoadTimeout は共有される画像読み込みの上限。呼び出し元の切断とは独立している
const imageLoadTimeout = 10 * time.Second

type EventService struct {
	eventRepo  event.Repository
	imageCache event.ImageCache
	locker     event.Locker
	metrics    *metrics.Metrics

	// 同じイベントの画像読み込みを1回にまとめる
	imageLoads singleflight.Group

	// 画像の世代。更新・削除のたびに進め、読み込み中に世代が変わった画像はキャッシュしない
	genMu     sync.Mutex
	imageGens map[string]uint64
}

// NewEventService はEventServiceを作成する
// imageCache・locker・m は nil の場合は使用しない
func NewEventService(eventRepo event.Repository, imageCache event.ImageCache, locker event.Locker, m *metrics.Metrics) *EventService {
	return &EventService{
		eventRepo:  eventRepo,
		imageCache: imageCache,
		locker:     locker,
		metrics:    m,
		imageGens:  make(map[string]uint64),
	}
}

// ImageInput はアップロードされた画像
type ImageInput struct {
	Data        []byte
	ContentType string
}

type CreateEventInput struct {
	Title       string
	Description string
	Date        string
	Status      string
	Category    string
	Image       *ImageInput
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e, img, err := buildEvent(input)
	if err != nil {
		s.metrics.RecordEventOperation(opCreate, "invalid")
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	if err := s.eventRepo.Create(ctx, e, img); err != nil {
		s.metrics.RecordEventOperation(opCreate, "error")
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	if img != nil {
		s.metrics.ObserveUpload(len(img.Data))
	}
	s.metrics.RecordEventOperation(opCreate, "success")
	logger.Info("イベントを作成しました", zap.String("event_id", e.ID), zap.Bool("has_image", img != nil))
	return e, nil
}

func buildEvent(input CreateEventInput) (*event.Event, *event.Image, error) {
	date, err := event.ParseDate(input.Date)
	if err != nil {
		return nil, nil, err
	}
	status, err := event.ParseStatus(input.Status)
	if err != nil {
		return nil, nil, err
	}
	category, err := event.ParseCategory(input.Category)
	if err != nil {
		return nil, nil, err
	}
	e := event.NewEvent(input.Title, input.Description, date, status, category)
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}
	img, err := buildImage(input.Image)
	if err != nil {
		return nil, nil, err
	}
	return e, img, nil
}

func buildImage(input *ImageInput) (*event.Image, error) {
	if input == nil {
		return nil, nil
	}
	return event.NewImage(input.Data, input.ContentType)
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// ListEvents は作成日時の降順でイベントを返す。filter が空なら全件
func (s *EventService) ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return filter.Apply(events), nil
}

// UpdateEventInput は更新内容。nil のフィールドは既存の値を保持する
type UpdateEventInput struct {
	ID              string
	Title           *string
	Description     *string
	Date            *string
	Status          *string
	Category        *string
	Image           *ImageInput
	ExpectedVersion *int // 指定時のみ楽観的ロックを行う
}

func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	unlock, err := s.lock(ctx, input.ID)
	if err != nil {
		s.metrics.RecordEventOperation(opUpdate, "conflict")
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		s.metrics.RecordEventOperation(opUpdate, resultOf(err))
		return nil, err
	}

	img, err := applyUpdate(e, input)
	if err != nil {
		s.metrics.RecordEventOperation(opUpdate, "invalid")
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	checkVersion := input.ExpectedVersion != nil
	if checkVersion {
		e.Version = *input.ExpectedVersion
	}
	if err := s.eventRepo.Update(ctx, e, img, checkVersion); err != nil {
		s.metrics.RecordEventOperation(opUpdate, resultOf(err))
		if errors.Is(err, event.ErrEventNotFound) || errors.Is(err, event.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	// 画像の有無に関わらず無効化する（後続の GetImage が古い画像を返さないように）
	s.invalidateImage(ctx, e.ID)
	if img != nil {
		s.metrics.ObserveUpload(len(img.Data))
	}
	s.metrics.RecordEventOperation(opUpdate, "success")
	logger.Info("イベントを更新しました", zap.String("event_id", e.ID), zap.Int("version", e.Version))
	return e, nil
}

// applyUpdate は指定されたフィールドをイベントに反映して検証する
func applyUpdate(e *event.Event, input UpdateEventInput) (*event.Image, error) {
	if input.Title != nil {
		e.Title = *input.Title
	}
	if input.Description != nil {
		e.Description = *input.Description
	}
	if input.Date != nil {
		date, err := event.ParseDate(*input.Date)
		if err != nil {
			return nil, err
		}
		e.Date = date
	}
	if input.Status != nil {
		status, err := event.ParseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		e.Status = status
	}
	if input.Category != nil {
		category, err := event.ParseCategory(*input.Category)
		if err != nil {
			return nil, err
		}
		e.Category = category
	}

	// NewEvent と同じく前後の空白を除去してから検証する
	normalized := event.NewEvent(e.Title, e.Description, e.Date, e.Status, e.Category)
	e.Title, e.Description = normalized.Title, normalized.Description
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return buildImage(input.Image)
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		s.metrics.RecordEventOperation(opDelete, "conflict")
		return err
	}
	defer unlock()

	if err := s.eventRepo.Delete(ctx, id); err != nil {
		s.metrics.RecordEventOperation(opDelete, resultOf(err))
		return err
	}
	s.invalidateImage(ctx, id)
	s.metrics.RecordEventOperation(opDelete, "success")
	logger.Info("イベントを削除しました", zap.String("event_id", id))
	return nil
}

// lock はイベントの更新ロックを取得する。locker がなければ何もしない
// 解放はリクエストの切断に関係なく行う
func (s *EventService) lock(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ロック解放エラー", zap.String("event_id", id), zap.Error(err))
		}
	}, nil
}

// GetEventImage は画像本体を返す。キャッシュがあれば先に参照する
func (s *EventService) GetEventImage(ctx context.Context, id string) (*event.Image, error) {
	gen := s.imageGeneration(id)

	if s.imageCache != nil {
		img, err := s.imageCache.Get(ctx, id)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("event_id", id))
			s.metrics.RecordEventOperation(opGetImage, "success")
			return img, nil
		}
		if !errors.Is(err, event.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// 世代をキーに含め、更新後の呼び出しが更新前の読み込みに合流しないようにする
	key := fmt.Sprintf("%s#%d", id, gen)
	ch := s.imageLoads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageLoadTimeout)
		defer cancel()

		img, err := s.eventRepo.GetImage(loadCtx, id)
		if err != nil {
			return nil, err
		}
		s.cacheImage(loadCtx, id, gen, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.metrics.RecordEventOperation(opGetImage, resultOf(res.Err))
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("画像の読み込みを共有しました", zap.String("event_id", id))
		}
		s.metrics.RecordEventOperation(opGetImage, "success")
		return res.Val.(*event.Image), nil
	}
}

func (s *EventService) imageGeneration(id string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.imageGens[id]
}

// cacheImage は読み込み開始時の世代のままであればキャッシュに保存する
// 保存と無効化が前後した場合は保存後に世代を見直して自分で消す
func (s *EventService) cacheImage(ctx context.Context, id string, gen uint64, img *event.Image) {
	if s.imageCache == nil || s.imageGeneration(id) != gen {
		return
	}
	if err := s.imageCache.Set(ctx, id, img); err != nil {
		logger.Warn("キャッシュ保存エラー", zap.Error(err))
		return
	}
	if s.imageGeneration(id) != gen {
		if err := s.imageCache.Invalidate(ctx, id); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.String("event_id", id), zap.Error(err))
		}
	}
}

// invalidateImage は世代を進めてからキャッシュを消す
// 更新・削除のコミット後に呼ぶこと
func (s *EventService) invalidateImage(ctx context.Context, id string) {
	s.genMu.Lock()
	s.imageGens[id]++
	s.genMu.Unlock()

	if s.imageCache != nil {
		// コミット済みの変更なので、呼び出し元が切断していても消す
		if err := s.imageCache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.String("event_id", id), zap.Error(err))
		}
	}
}

// resultOf はエラーをメトリクスの result ラベルに変換する
func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, event.ErrEventNotFound), errors.Is(err, event.ErrImageNotFound):
		return "not_found"
	case errors.Is(err, event.ErrVersionConflict), errors.Is(err, event.ErrEventLocked):
		return "conflict"
	case event.IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
