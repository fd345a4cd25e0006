package auth

import "errors"

// Auth ドメインのエラー定義
var (
	// ErrInvalidCredentials はユーザー名とパスワードのどちらが誤っていても同じ値を返す
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminNotConfigured = errors.New("admin credentials are not configured")
)
