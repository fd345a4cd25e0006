package application

import (
	"context"
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanosuguru/campus-events/internal/domain/auth"
	"github.com/sanosuguru/campus-events/internal/pkg/logger"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

// AuthService は設定された管理者の認証を行う
// セッションやトークンは発行しない
type AuthService struct {
	admin   auth.Admin
	metrics *metrics.Metrics
}

func NewAuthService(admin auth.Admin, m *metrics.Metrics) *AuthService {
	if !admin.IsConfigured() {
		logger.Warn("管理者の認証情報が設定されていません。ログインは常に失敗します")
	}
	return &AuthService{admin: admin, metrics: m}
}

type LoginInput struct {
	Username string
	Password string
}

// Authenticate は認証に成功した管理者のユーザー名を返す
// 未入力を含め、ユーザー名とパスワードのどちらが誤っていても auth.ErrInvalidCredentials を返す
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (string, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" || !s.admin.IsConfigured() {
		s.metrics.RecordLogin(false)
		return "", auth.ErrInvalidCredentials
	}

	// ユーザー名が一致しなくてもパスワード照合を行い、応答時間を揃える
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := s.checkPassword(input.Password)
	if !userOK || !passOK {
		s.metrics.RecordLogin(false)
		logger.Info("ログインに失敗しました", zap.String("username", username))
		return "", auth.ErrInvalidCredentials
	}

	s.metrics.RecordLogin(true)
	logger.Info("ログインに成功しました", zap.String("username", username))
	return s.admin.Username, nil
}

func (s *AuthService) checkPassword(password string) bool {
	if s.admin.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
}
