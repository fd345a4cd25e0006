package event

import (
	"strings"
	"time"
)

// Status はイベントの開催状況
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// Category はイベントの分類
type Category string

const (
	CategoryAcademic  Category = "academic"
	CategoryCultural  Category = "cultural"
	CategorySports    Category = "sports"
	CategoryTechnical Category = "technical"
	CategorySocial    Category = "social"
)

// Statuses は有効なステータスの一覧
var Statuses = []Status{StatusUpcoming, StatusOngoing, StatusCompleted}

// Categories は有効なカテゴリの一覧
var Categories = []Category{CategoryAcademic, CategoryCultural, CategorySports, CategoryTechnical, CategorySocial}

func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseStatus は文字列をステータスに変換する。空文字はデフォルト値になる
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUpcoming, nil
	}
	st := Status(s)
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParseCategory は文字列をカテゴリに変換する。空文字はデフォルト値になる
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryAcademic, nil
	}
	c := Category(s)
	if !c.IsValid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// 受け付ける日付フォーマット（HTMLのdate/datetime-local入力を含む）
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate はイベント日時をパースする。タイムゾーンのない値はUTCとして扱う
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrDateRequired
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ImageInfo は保存済み画像のメタデータ（本体は含まない）
type ImageInfo struct {
	ContentType string
	Size        int64
}

// Event はイベントエンティティを表す
type Event struct {
	ID          string
	Title       string
	Description string
	Date        time.Time
	Status      Status
	Category    Category
	Image       *ImageInfo // 画像がない場合は nil
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用（指定時のみ検証）
}

// NewEvent は新しいイベントを作成する。タイトルと説明は前後の空白を除去する
func NewEvent(title, description string, date time.Time, status Status, category Category) *Event {
	if status == "" {
		status = StatusUpcoming
	}
	if category == "" {
		category = CategoryAcademic
	}
	return &Event{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Date:        date,
		Status:      status,
		Category:    category,
	}
}

// HasImage は画像が添付されているかを返す
func (e *Event) HasImage() bool {
	return e.Image != nil
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrDescRequired
	}
	if e.Date.IsZero() {
		return ErrDateRequired
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if e.Image != nil && e.Image.ContentType == "" {
		return ErrUnsupportedImage
	}
	return nil
}
