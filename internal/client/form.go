package client

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sanosuguru/campus-events/internal/domain/event"
)

// フォームの入力制約
const (
	MinTitleLength       = 3
	MinDescriptionLength = 10
)

// 画面で使う日付の形式（HTML の date input と同じ）
const formDateLayout = "2006-01-02"

// FormErrors はフィールド名ごとの入力エラー
type FormErrors map[string]string

func (e FormErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e[k]
	}
	return strings.Join(msgs, "; ")
}

// EventForm は作成・編集フォームの状態
type EventForm struct {
	Title       string
	Description string
	Date        string
	Category    string
	Status      string
	Image       *ImageUpload
	PreviewURL  string // 編集中のイベントに保存済みの画像
}

// NewEventForm は初期値のフォームを返す
func NewEventForm() EventForm {
	return EventForm{
		Category: string(event.CategoryAcademic),
		Status:   string(event.StatusUpcoming),
	}
}

// FormFromEvent は編集用にイベントの値を入れたフォームを返す
// previewURL は画像がある場合のみ設定する
func FormFromEvent(e Event, previewURL string) EventForm {
	f := EventForm{
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Status:      e.Status,
	}
	if !e.Date.IsZero() {
		f.Date = e.Date.UTC().Format(formDateLayout)
	}
	if f.Category == "" {
		f.Category = string(event.CategoryAcademic)
	}
	if f.Status == "" {
		f.Status = string(event.StatusUpcoming)
	}
	if e.Image != nil {
		f.PreviewURL = previewURL
	}
	return f
}

// Validate は送信前の入力チェックを行う。問題がなければ nil を返す
// 日付は now の日付より前を拒否する（当日は可）
func (f EventForm) Validate(now time.Time) FormErrors {
	errs := FormErrors{}

	title := strings.TrimSpace(f.Title)
	switch {
	case title == "":
		errs["title"] = "Event title is required"
	case utf8.RuneCountInString(title) < MinTitleLength:
		errs["title"] = "Title must be at least 3 characters long"
	}

	description := strings.TrimSpace(f.Description)
	switch {
	case description == "":
		errs["description"] = "Event description is required"
	case utf8.RuneCountInString(description) < MinDescriptionLength:
		errs["description"] = "Description must be at least 10 characters long"
	}

	if msg := validateFormDate(f.Date, now); msg != "" {
		errs["date"] = msg
	}

	if msg := ValidateImage(f.Image); msg != "" {
		errs["image"] = msg
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateFormDate(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "Event date is required"
	}
	date, err := event.ParseDate(value)
	if err != nil {
		return "Event date is not a valid date"
	}
	y, m, d := date.UTC().Date()
	selected := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ty, tm, td := now.Date()
	today := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	if selected.Before(today) {
		return "Event date cannot be in the past"
	}
	return ""
}

// ValidateImage は選択された画像の形式とサイズを確認する。nil は未選択として扱う
func ValidateImage(img *ImageUpload) string {
	if img == nil {
		return ""
	}
	if !event.IsAllowedImageType(img.ContentType) {
		return "Please select a valid image file (JPG, JPEG, PNG)"
	}
	if len(img.Data) > event.MaxImageSize {
		return "File size must be less than 5MB"
	}
	return ""
}

// Input はフォームの値を送信用の入力に変換する
func (f EventForm) Input() EventInput {
	return EventInput{
		Title:       f.Title,
		Description: f.Description,
		Date:        f.Date,
		Status:      f.Status,
		Category:    f.Category,
		Image:       f.Image,
	}
}
