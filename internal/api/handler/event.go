package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/campus-events/internal/api"
	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// フォームのフィールド名
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldDate        = "date"
	fieldStatus      = "status"
	fieldCategory    = "category"
	fieldVersion     = "version"
	fieldImage       = "image"
)

// ListEventsQuery は一覧取得の絞り込み条件
type ListEventsQuery struct {
	Search   string `query:"search" validate:"max=200"`
	Category string `query:"category" validate:"omitempty,oneof=all academic cultural sports technical social"`
}

type ImageResponse struct {
	ContentType string `json:"contentType" example:"image/png"`
	Size        int64  `json:"size" example:"1234"`
	URL         string `json:"url" example:"/api/events/550e8400-e29b-41d4-a716-446655440000/image"`
}

type EventResponse struct {
	ID          string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title       string         `json:"title" example:"Spring Fest"`
	Description string         `json:"description" example:"Annual cultural festival"`
	Date        string         `json:"date" example:"2026-04-02T00:00:00Z"`
	Status      string         `json:"status" example:"upcoming"`
	Category    string         `json:"category" example:"cultural"`
	Image       *ImageResponse `json:"image,omitempty"`
	Version     int            `json:"version" example:"0"`
	CreatedAt   string         `json:"createdAt" example:"2026-03-01T10:00:00Z"`
	UpdatedAt   string         `json:"updatedAt" example:"2026-03-01T10:00:00Z"`
}

// MessageResponse は削除などの確認メッセージ
type MessageResponse struct {
	Message string `json:"message"`
}

// ImagePath は画像エンドポイントのパスを返す
func ImagePath(id string) string {
	return "/api/events/" + id + "/image"
}

func toEventResponse(e *event.Event) *EventResponse {
	resp := &EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date.UTC().Format(time.RFC3339),
		Status:      string(e.Status),
		Category:    string(e.Category),
		Version:     e.Version,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Image != nil {
		resp.Image = &ImageResponse{
			ContentType: e.Image.ContentType,
			Size:        e.Image.Size,
			URL:         ImagePath(e.ID),
		}
	}
	return resp
}

// Create godoc
// @Summary イベントを作成
// @Description multipart/form-data でイベントを作成します（画像は任意）
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "タイトル"
// @Param description formData string true "説明"
// @Param date formData string true "開催日時"
// @Param status formData string false "ステータス"
// @Param category formData string false "カテゴリ"
// @Param image formData file false "画像（JPEG/PNG, 5MB以下）"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	img, err := readImage(c)
	if err != nil {
		return err
	}

	input := application.CreateEventInput{
		Title:       c.FormValue(fieldTitle),
		Description: c.FormValue(fieldDescription),
		Date:        c.FormValue(fieldDate),
		Status:      c.FormValue(fieldStatus),
		Category:    c.FormValue(fieldCategory),
		Image:       img,
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), input)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description 作成日時の新しい順に返します
// @Tags events
// @Produce json
// @Param search query string false "タイトル・説明の部分一致（大文字小文字を区別しない）"
// @Param category query string false "カテゴリ（all で全件）"
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	var q ListEventsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters").SetInternal(err)
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	events, err := h.eventService.ListEvents(c.Request().Context(), event.Filter{
		Search:   strings.TrimSpace(q.Search),
		Category: q.Category,
	})
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}

// Update godoc
// @Summary イベントを更新
// @Description 送信されたフィールドのみ更新します。画像を送信すると置き換えます
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "イベントID"
// @Param version formData int false "楽観的ロック用のバージョン"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	img, err := readImage(c)
	if err != nil {
		return err
	}
	if _, err := c.FormParams(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data").SetInternal(err)
	}
	// クエリ文字列は対象外にする
	params := c.Request().PostForm

	// 送信されたフィールドだけを更新対象にする（空文字も「送信された」とみなす）
	optional := func(key string) *string {
		if vs, ok := params[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}

	input := application.UpdateEventInput{
		ID:          c.Param("id"),
		Title:       optional(fieldTitle),
		Description: optional(fieldDescription),
		Date:        optional(fieldDate),
		Status:      optional(fieldStatus),
		Category:    optional(fieldCategory),
		Image:       img,
	}
	if v := optional(fieldVersion); v != nil && strings.TrimSpace(*v) != "" {
		version, err := strconv.Atoi(strings.TrimSpace(*v))
		if err != nil || version < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "version must be a non-negative integer")
		}
		input.ExpectedVersion = &version
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), input)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Event deleted successfully"})
}

// Image godoc
// @Summary イベント画像を取得
// @Description 保存された Content-Type で画像本体を返します
// @Tags events
// @Produce image/jpeg,image/png
// @Param id path string true "イベントID"
// @Success 200 {file} binary
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/image [get]
func (h *EventHandler) Image(c echo.Context) error {
	img, err := h.eventService.GetEventImage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	// 更新後に古い画像が表示されないよう、ブラウザには毎回再検証させる
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}

// readImage はフォームの image ファイルを読み込む。添付がなければ nil を返す
// 形式とサイズはここで先に検証し、ファイル本体を読み切る前に拒否する
func readImage(c echo.Context) (*application.ImageInput, error) {
	fh, err := c.FormFile(fieldImage)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid form data").SetInternal(err)
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if !event.IsAllowedImageType(contentType) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, event.ErrUnsupportedImage.Message)
	}
	if fh.Size > event.MaxImageSize {
		return nil, echo.NewHTTPError(http.StatusBadRequest, event.ErrImageTooLarge.Message)
	}

	data, err := readAllLimited(fh)
	if err != nil {
		return nil, err
	}
	return &application.ImageInput{Data: data, ContentType: contentType}, nil
}

func readAllLimited(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルを開けません: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, event.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルの読み込みに失敗: %w", err)
	}
	if len(data) > event.MaxImageSize {
		return nil, echo.NewHTTPError(http.StatusBadRequest, event.ErrImageTooLarge.Message)
	}
	return data, nil
}

// toHTTPError はサービス層のエラーをHTTPエラーに変換する
func toHTTPError(err error) error {
	var ve *event.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message).SetInternal(err)
	case errors.Is(err, event.ErrEventNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	case errors.Is(err, event.ErrImageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	case errors.Is(err, event.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "Event was modified by another request, reload and try again")
	case errors.Is(err, event.ErrEventLocked):
		return echo.NewHTTPError(http.StatusConflict, "Event is being modified, try again")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, api.InternalErrorMessage).SetInternal(err)
	}
}
