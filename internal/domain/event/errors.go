package event

import "errors"

// ValidationError は入力値の検証エラーを表す
// Message はそのままクライアントに返す
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Event ドメインのエラー定義
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrImageNotFound    = errors.New("image not found")
	ErrVersionConflict  = errors.New("event was modified by another request")
	ErrEventLocked      = errors.New("event is being modified, try again")
	ErrCacheMiss        = errors.New("image not cached")
	ErrTitleRequired    = &ValidationError{Field: "title", Message: "title is required"}
	ErrDescRequired     = &ValidationError{Field: "description", Message: "description is required"}
	ErrDateRequired     = &ValidationError{Field: "date", Message: "date is required"}
	ErrInvalidDate      = &ValidationError{Field: "date", Message: "date is not a valid date"}
	ErrInvalidStatus    = &ValidationError{Field: "status", Message: "status must be one of upcoming, ongoing, completed"}
	ErrInvalidCategory  = &ValidationError{Field: "category", Message: "category must be one of academic, cultural, sports, technical, social"}
	ErrUnsupportedImage = &ValidationError{Field: "image", Message: "image must be a JPG, JPEG or PNG file"}
	ErrImageTooLarge    = &ValidationError{Field: "image", Message: "image must be 5MB or smaller"}
	ErrImageEmpty       = &ValidationError{Field: "image", Message: "image file is empty"}
)

// IsValidation はエラーが入力検証エラーかどうかを返す
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
