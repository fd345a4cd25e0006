package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/campus-events/internal/api"
	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/domain/auth"
)

type AuthHandler struct {
	authService AuthServiceInterface
}

func NewAuthHandler(authService AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"max=200" example:"admin"`
	Password string `json:"password" form:"password" validate:"max=200" example:"secret"`
}

type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

// Login godoc
// @Summary 管理者ログイン
// @Description 設定された管理者の認証情報を照合します。トークンは発行しません
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body LoginRequest true "認証情報"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} LoginResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	username, err := h.authService.Authenticate(c.Request().Context(), application.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// 未入力も含め、失敗理由は区別せず同じ応答を返す
			return c.JSON(http.StatusUnauthorized, LoginResponse{Success: false, Message: "Invalid credentials"})
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, api.InternalErrorMessage).SetInternal(err)
		}
	}

	return c.JSON(http.StatusOK, LoginResponse{Success: true, Message: "Login successful", Username: username})
}
