package event

import "context"

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成し、ID・タイムスタンプ・バージョンを設定する
	Create(ctx context.Context, event *Event, image *Image) error

	// GetByID はIDからイベントを取得する（画像本体は含まない）
	GetByID(ctx context.Context, id string) (*Event, error)

	// List は全イベントを作成日時の降順で取得する
	List(ctx context.Context) ([]*Event, error)

	// Update はイベントを更新する。image が nil の場合は既存の画像を保持する
	// checkVersion が true の場合は event.Version と一致するときのみ更新する
	Update(ctx context.Context, event *Event, image *Image, checkVersion bool) error

	// Delete はイベントを削除する
	Delete(ctx context.Context, id string) error

	// GetImage はイベントの画像本体を取得する
	GetImage(ctx context.Context, id string) (*Image, error)
}

// ImageCache は画像本体のキャッシュ
type ImageCache interface {
	Get(ctx context.Context, eventID string) (*Image, error)
	Set(ctx context.Context, eventID string, image *Image) error
	Invalidate(ctx context.Context, eventID string) error
}

// Locker はイベント単位の排他制御
// Lock は解放関数を返す。取得できない場合は ErrEventLocked を返す
type Locker interface {
	Lock(ctx context.Context, eventID string) (unlock func(context.Context) error, err error)
}
