package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/campus-events/internal/config"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		BodyLimit:    "1K",
		AllowOrigins: []string{"http://localhost:3000"},
	}
}

func TestSetupMiddleware(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e, testServerConfig())

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	})
	e.POST("/upload", func(c echo.Context) error {
		return c.String(http.StatusOK, "uploaded")
	})

	t.Run("リクエストIDが付与される", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "test", rec.Body.String())
		_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
		assert.NoError(t, err)
	})

	t.Run("既存のリクエストIDは維持される", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(echo.HeaderXRequestID, "existing-request-id")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "existing-request-id", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("許可されたオリジンにCORSヘッダーを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("許可されていないオリジンにはCORSヘッダーを返さない", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(echo.HeaderOrigin, "http://evil.example.com")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("上限を超えるボディは413", func(t *testing.T) {
		body := bytes.Repeat([]byte("a"), 2048)
		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("上限内のボディは通る", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("small"))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSetupMiddleware_Recover(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e, &config.ServerConfig{AllowOrigins: []string{"*"}})

	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name       string
		handler    echo.HandlerFunc
		wantStatus int
	}{
		{
			name:       "正常なリクエスト",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "success") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "HTTPErrorはエラーハンドラーで確定したステータスになる",
			handler:    func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "bad request") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "サーバーエラー",
			handler:    func(c echo.Context) error { return c.String(http.StatusInternalServerError, "internal error") },
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "素のエラーは500",
			handler:    func(c echo.Context) error { return errors.New("unexpected") },
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(RequestLogger())
			e.GET("/test", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	e := echo.New()
	e.Use(PrometheusMiddleware(m))
	e.GET("/api/events/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/error", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/events/"+id, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("ルート定義のパスで集計される", func(t *testing.T) {
		assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/events/:id", "200")))
	})

	t.Run("HTTPErrorのステータスで記録される", func(t *testing.T) {
		assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/error", "400")))
	})

	t.Run("処理が終わると処理中の数は0に戻る", func(t *testing.T) {
		assert.Zero(t, testutil.ToFloat64(m.HTTPRequestsInFlight))
	})

	t.Run("/metrics 自体は集計しない", func(t *testing.T) {
		e.GET("/metrics", func(c echo.Context) error {
			return c.String(http.StatusOK, "# metrics")
		})
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "200")))
	})

	t.Run("レイテンシが記録される", func(t *testing.T) {
		families, err := reg.Gather()
		require.NoError(t, err)

		var foundDuration bool
		for _, f := range families {
			if f.GetName() == "http_request_duration_seconds" {
				foundDuration = true
			}
		}
		assert.True(t, foundDuration, "http_request_duration_seconds should be recorded")
	})
}
