package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/domain/event"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventService) GetEventImage(ctx context.Context, id string) (*event.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Image), args.Error(1)
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

// newMultipartRequest はフォームフィールドと任意の画像からmultipartリクエストを作成する
func newMultipartRequest(t *testing.T, method, target string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func sampleEvent() *event.Event {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &event.Event{
		ID:          "event-123",
		Title:       "Spring Fest",
		Description: "Annual cultural festival",
		Date:        time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Status:      event.StatusUpcoming,
		Category:    event.CategoryCultural,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestEventHandler_Create(t *testing.T) {
	e := NewTestEcho()
	fields := map[string]string{
		"title":       "Spring Fest",
		"description": "Annual cultural festival",
		"date":        "2026-04-02",
		"category":    "cultural",
	}

	t.Run("正常にイベントを作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, application.CreateEventInput{
			Title:       "Spring Fest",
			Description: "Annual cultural festival",
			Date:        "2026-04-02",
			Category:    "cultural",
		}).Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", fields, nil)
		rec := httptest.NewRecorder()

		err := handler.Create(e.NewContext(req, rec))

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "event-123", resp.ID)
		assert.Equal(t, "Spring Fest", resp.Title)
		mockService.AssertExpectations(t)
	})

	t.Run("画像付きで作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		png := []byte{0x89, 'P', 'N', 'G'}
		mockService.On("CreateEvent", mock.Anything, mock.MatchedBy(func(in application.CreateEventInput) bool {
			return in.Image != nil && bytes.Equal(in.Image.Data, png) && in.Image.ContentType == "image/png"
		})).Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", fields,
			&formFile{name: "poster.png", contentType: "image/png", data: png})
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Create(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusCreated, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("対象外の画像形式はサービスを呼ばずに400", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", fields,
			&formFile{name: "anim.gif", contentType: "image/gif", data: []byte("GIF89a")})
		rec := httptest.NewRecorder()

		err := handler.Create(e.NewContext(req, rec))

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, event.ErrUnsupportedImage.Message, he.Message)
		mockService.AssertNotCalled(t, "CreateEvent")
	})

	t.Run("5MiBを超える画像は400", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", fields,
			&formFile{name: "huge.jpg", contentType: "image/jpeg", data: make([]byte, event.MaxImageSize+1)})
		rec := httptest.NewRecorder()

		err := handler.Create(e.NewContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, event.ErrImageTooLarge.Message, he.Message)
	})

	t.Run("バリデーションエラーは400でメッセージを返す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.AnythingOfType("application.CreateEventInput")).
			Return(nil, event.ErrTitleRequired)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", map[string]string{"description": "no title"}, nil)
		rec := httptest.NewRecorder()

		err := handler.Create(e.NewContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, "title is required", he.Message)
	})

	t.Run("想定外のエラーは500で詳細を返さない", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.AnythingOfType("application.CreateEventInput")).
			Return(nil, errors.New("pq: relation \"events\" does not exist"))

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPost, "/api/events", fields, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq:")
	})
}

func TestEventHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にイベントを取得できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "event-123").Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events/event-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		require.NoError(t, handler.GetByID(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"Spring Fest"`)
	})

	t.Run("存在しないイベントで404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "missing").Return(nil, event.ErrEventNotFound)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		err := handler.GetByID(c)

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
		assert.Equal(t, "Event not found", he.Message)
	})
}

func TestEventHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("絞り込み条件をサービスに渡す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, event.Filter{Search: "spring", Category: "cultural"}).
			Return([]*event.Event{sampleEvent()}, nil)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events?search=+spring+&category=cultural", nil)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.List(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		mockService.AssertExpectations(t)
	})

	t.Run("0件は空配列", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, event.Filter{}).Return([]*event.Event{}, nil)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.List(e.NewContext(req, rec)))
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("未知のカテゴリは400", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events?category=music", nil)
		rec := httptest.NewRecorder()

		err := handler.List(e.NewContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "ListEvents")
	})
}

func TestEventHandler_Update(t *testing.T) {
	e := NewTestEcho()

	newContext := func(req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-123")
		return c
	}

	t.Run("送信されたフィールドだけを渡す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(in application.UpdateEventInput) bool {
			return in.ID == "event-123" &&
				in.Title != nil && *in.Title == "Renamed" &&
				in.Status != nil && *in.Status == "" &&
				in.Description == nil && in.Date == nil && in.Category == nil &&
				in.Image == nil && in.ExpectedVersion == nil
		})).Return(sampleEvent(), nil)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPut, "/api/events/event-123?description=ignored",
			map[string]string{"title": "Renamed", "status": ""}, nil)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.Update(newContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("バージョンを指定できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(in application.UpdateEventInput) bool {
			return in.ExpectedVersion != nil && *in.ExpectedVersion == 3
		})).Return(nil, event.ErrVersionConflict)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPut, "/api/events/event-123", map[string]string{"version": "3"}, nil)
		rec := httptest.NewRecorder()

		err := handler.Update(newContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("不正なバージョンは400", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPut, "/api/events/event-123", map[string]string{"version": "abc"}, nil)
		rec := httptest.NewRecorder()

		err := handler.Update(newContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "UpdateEvent")
	})

	t.Run("存在しないイベントで404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("UpdateEvent", mock.Anything, mock.AnythingOfType("application.UpdateEventInput")).
			Return(nil, event.ErrEventNotFound)

		handler := NewEventHandler(mockService)
		req := newMultipartRequest(t, http.MethodPut, "/api/events/event-123", map[string]string{"title": "x"}, nil)
		rec := httptest.NewRecorder()

		err := handler.Update(newContext(req, rec))

		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestEventHandler_Delete(t *testing.T) {
	e := NewTestEcho()

	t.Run("削除の確認メッセージを返す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("DeleteEvent", mock.Anything, "event-123").Return(nil)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodDelete, "/api/events/event-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		require.NoError(t, handler.Delete(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Event deleted successfully"}`, rec.Body.String())
	})

	t.Run("存在しないイベントで404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("DeleteEvent", mock.Anything, "missing").Return(event.ErrEventNotFound)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodDelete, "/api/events/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		he, ok := handler.Delete(c).(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestEventHandler_Image(t *testing.T) {
	e := NewTestEcho()

	t.Run("保存されたContent-Typeで画像を返す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEventImage", mock.Anything, "event-123").
			Return(&event.Image{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}, nil)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events/event-123/image", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		require.NoError(t, handler.Image(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, rec.Body.Bytes())
	})

	t.Run("画像がなければ404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEventImage", mock.Anything, "event-123").Return(nil, event.ErrImageNotFound)

		handler := NewEventHandler(mockService)
		req := httptest.NewRequest(http.MethodGet, "/api/events/event-123/image", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-123")

		he, ok := handler.Image(c).(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
		assert.Equal(t, "Image not found", he.Message)
	})
}
