package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/campus-events/internal/api"
	"github.com/sanosuguru/campus-events/internal/api/handler"
	"github.com/sanosuguru/campus-events/internal/api/middleware"
	"github.com/sanosuguru/campus-events/internal/config"
	"github.com/sanosuguru/campus-events/internal/pkg/metrics"
)

// Deps はルーターが使うサービスと設定
type Deps struct {
	EventService handler.EventServiceInterface
	AuthService  handler.AuthServiceInterface
	Checks       map[string]handler.CheckFunc

	Server     *config.ServerConfig
	MetricsCfg config.MetricsConfig

	// ログイン試行の制限（LoginRate が 0 以下なら無制限）
	LoginRate  float64
	LoginBurst int

	// Metrics が nil の場合は HTTP メトリクスを収集しない
	Metrics *metrics.Metrics
	// Gatherer が nil の場合はデフォルトレジストリを公開する
	Gatherer prometheus.Gatherer
}

// New はミドルウェアとルートを設定した Echo インスタンスを返す
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, d.Server)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(d.MetricsCfg))

	eventHandler := handler.NewEventHandler(d.EventService)
	authHandler := handler.NewAuthHandler(d.AuthService)
	healthHandler := handler.NewHealthHandler(d.Checks)

	g := e.Group("/api")

	g.GET("/health", healthHandler.Check)
	g.GET("/health/ready", healthHandler.Ready)

	g.POST("/auth/login", authHandler.Login, middleware.LoginRateLimiter(d.LoginRate, d.LoginBurst))

	g.POST("/events", eventHandler.Create)
	g.GET("/events", eventHandler.List)
	g.GET("/events/:id", eventHandler.GetByID)
	g.PUT("/events/:id", eventHandler.Update)
	g.DELETE("/events/:id", eventHandler.Delete)
	g.GET("/events/:id/image", eventHandler.Image)

	return e
}
