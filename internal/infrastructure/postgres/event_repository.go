package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/campus-events/internal/domain/event"
)

// 画像本体は一覧・詳細では読み込まず、サイズのみ取得する
const eventColumns = `id, title, description, event_date, status, category,
	image_content_type, octet_length(image_data) AS image_size,
	version, created_at, updated_at`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID               string    `db:"id"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	EventDate        time.Time `db:"event_date"`
	Status           string    `db:"status"`
	Category         string    `db:"category"`
	ImageContentType *string   `db:"image_content_type"`
	ImageSize        *int64    `db:"image_size"`
	Version          int       `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	e := &event.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.EventDate,
		Status:      event.Status(r.Status),
		Category:    event.Category(r.Category),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
	if r.ImageContentType != nil {
		var size int64
		if r.ImageSize != nil {
			size = *r.ImageSize
		}
		e.Image = &event.ImageInfo{ContentType: *r.ImageContentType, Size: size}
	}
	return e
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// UUID 以外のIDは存在しないものとして扱う（DBのキャストエラーを避ける）
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event, img *event.Image) error {
	query := `
		INSERT INTO events (title, description, event_date, status, category, image_data, image_content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`
	var data, contentType interface{}
	if img != nil {
		data, contentType = img.Data, img.ContentType
	}

	err := r.db.QueryRowxContext(ctx, query,
		e.Title, e.Description, e.Date, string(e.Status), string(e.Category), data, contentType,
	).Scan(&e.ID, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	if img != nil {
		e.Image = img.Info()
	} else {
		e.Image = nil
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	if !validID(id) {
		return nil, event.ErrEventNotFound
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List は全イベントを作成日時の降順で取得する
func (r *EventRepository) List(ctx context.Context) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC, id DESC`

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// Update はイベントを更新する
// checkVersion が false の場合は後勝ち（last-write-wins）
func (r *EventRepository) Update(ctx context.Context, e *event.Event, img *event.Image, checkVersion bool) error {
	if !validID(e.ID) {
		return event.ErrEventNotFound
	}

	args := []interface{}{e.Title, e.Description, e.Date, string(e.Status), string(e.Category)}
	query := `
		UPDATE events
		SET title = $1, description = $2, event_date = $3, status = $4, category = $5,
		    version = version + 1, updated_at = now()`
	if img != nil {
		args = append(args, img.Data, img.ContentType)
		query += fmt.Sprintf(", image_data = $%d, image_content_type = $%d", len(args)-1, len(args))
	}
	args = append(args, e.ID)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	if checkVersion {
		args = append(args, e.Version)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}
	query += ` RETURNING version, updated_at`

	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, e.ID, checkVersion)
		}
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	if img != nil {
		e.Image = img.Info()
	}
	return nil
}

// missingOrConflict は更新対象がなかった理由を判定する
func (r *EventRepository) missingOrConflict(ctx context.Context, id string, checkVersion bool) error {
	if !checkVersion {
		return event.ErrEventNotFound
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("イベント存在確認に失敗しました: %w", err)
	}
	if exists {
		return event.ErrVersionConflict
	}
	return event.ErrEventNotFound
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return event.ErrEventNotFound
	}
	query := `DELETE FROM events WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// GetImage はイベントの画像本体を取得する
func (r *EventRepository) GetImage(ctx context.Context, id string) (*event.Image, error) {
	if !validID(id) {
		return nil, event.ErrEventNotFound
	}
	query := `SELECT image_data, image_content_type FROM events WHERE id = $1`

	var (
		data        []byte
		contentType sql.NullString
	)
	err := r.db.QueryRowxContext(ctx, query, id).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("画像取得に失敗しました: %w", err)
	}
	if data == nil || !contentType.Valid {
		return nil, event.ErrImageNotFound
	}
	return &event.Image{Data: data, ContentType: contentType.String}, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
