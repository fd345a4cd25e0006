package client

import (
	"context"
	"strings"
	"sync"
)

// Authenticator は管理者の認証情報を確認する
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Session は画面が共有する管理者のログイン状態
// ログイン成功で設定され、ログアウトまたはログイン失敗で解除される
type Session struct {
	mu       sync.RWMutex
	username string
}

func NewSession() *Session {
	return &Session{}
}

// Login は認証を行い、成功した場合のみセッションを設定する
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrFieldsRequired
	}

	name, err := auth.Login(ctx, username, password)
	if err != nil {
		s.Logout()
		return err
	}
	if name == "" {
		name = strings.TrimSpace(username)
	}

	s.mu.Lock()
	s.username = name
	s.mu.Unlock()
	return nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.username = ""
	s.mu.Unlock()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username != ""
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}
