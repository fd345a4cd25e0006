package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork はサーバーから応答が得られなかったことを表す
	ErrNetwork = errors.New("network error, try again")
	// ErrFieldsRequired はログインフォームの未入力
	ErrFieldsRequired = errors.New("please fill in all fields")
	// ErrClosed は Close 後の EventList の操作
	ErrClosed = errors.New("event list is closed")
	// ErrSuperseded は新しい Refresh によって結果が破棄されたことを表す
	ErrSuperseded = errors.New("refresh superseded by a newer request")
)

// APIError はサーバーが返したエラー応答
// Message はサーバーのメッセージをそのまま保持する
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// IsNotFound はエラーが 404 かどうかを返す
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized はエラーが 401 かどうかを返す
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsConflict はエラーが 409 かどうかを返す
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// UserMessage は画面に表示するメッセージを返す
// サーバーのメッセージはそのまま、通信エラーは共通の文言にする
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return ErrNetwork.Error()
	case errors.Is(err, ErrFieldsRequired):
		return "Please fill in all fields"
	default:
		var formErrs FormErrors
		if errors.As(err, &formErrs) {
			return formErrs.Error()
		}
		return "Something went wrong!"
	}
}
