package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/domain/auth"
)

// MockAuthService はAuthServiceInterfaceのモック
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Authenticate(ctx context.Context, input application.LoginInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func TestAuthHandler_Login(t *testing.T) {
	e := NewTestEcho()

	newJSONRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return req
	}

	t.Run("正しい認証情報で200", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Authenticate", mock.Anything, application.LoginInput{Username: "admin", Password: "secret"}).
			Return("admin", nil)

		handler := NewAuthHandler(mockService)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Login(e.NewContext(newJSONRequest(`{"username":"admin","password":"secret"}`), rec)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, LoginResponse{Success: true, Message: "Login successful", Username: "admin"}, resp)
	})

	t.Run("フォーム形式でもログインできる", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Authenticate", mock.Anything, application.LoginInput{Username: "admin", Password: "secret"}).
			Return("admin", nil)

		handler := NewAuthHandler(mockService)
		form := url.Values{"username": {"admin"}, "password": {"secret"}}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Login(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("誤った認証情報で401", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Authenticate", mock.Anything, mock.AnythingOfType("application.LoginInput")).
			Return("", auth.ErrInvalidCredentials)

		handler := NewAuthHandler(mockService)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Login(e.NewContext(newJSONRequest(`{"username":"admin","password":"nope"}`), rec)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"message":"Invalid credentials"}`, rec.Body.String())
	})

	t.Run("パスワード未入力も同じ401", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Authenticate", mock.Anything, application.LoginInput{Username: "admin"}).
			Return("", auth.ErrInvalidCredentials)

		handler := NewAuthHandler(mockService)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Login(e.NewContext(newJSONRequest(`{"username":"admin"}`), rec)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"message":"Invalid credentials"}`, rec.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("不正なJSONは400", func(t *testing.T) {
		handler := NewAuthHandler(new(MockAuthService))
		rec := httptest.NewRecorder()

		err := handler.Login(e.NewContext(newJSONRequest(`{"username":`), rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("想定外のエラーは500", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Authenticate", mock.Anything, mock.AnythingOfType("application.LoginInput")).
			Return("", errors.New("unexpected"))

		handler := NewAuthHandler(mockService)
		rec := httptest.NewRecorder()

		err := handler.Login(e.NewContext(newJSONRequest(`{"username":"admin","password":"x"}`), rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, he.Code)
	})
}
