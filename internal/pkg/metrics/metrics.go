package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 処理中のHTTPリクエスト数
	HTTPRequestsInFlight prometheus.Gauge

	// イベント操作の総数（operation: create/update/delete/get_image, result: success/invalid/not_found/conflict/error）
	EventOperationsTotal *prometheus.CounterVec

	// 画像キャッシュの参照結果（cache: memory/redis, result: hit/miss/error）
	ImageCacheLookups *prometheus.CounterVec

	// ログイン試行の総数（result: success/failure）
	LoginAttemptsTotal *prometheus.CounterVec

	// アップロードされた画像のサイズ
	ImageUploadBytes prometheus.Histogram

	// 保存されているイベント数（category, status）
	EventsStored *prometheus.GaugeVec

	// 画像付きイベントの数
	EventsWithImage prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		EventOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_operations_total",
				Help: "Total number of event write and image operations",
			},
			[]string{"operation", "result"},
		),
		ImageCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_cache_lookups_total",
				Help: "Image cache lookups by cache backend and result",
			},
			[]string{"cache", "result"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of admin login attempts",
			},
			[]string{"result"},
		),
		ImageUploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "image_upload_bytes",
				Help:    "Size of accepted image uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KiB .. 8MiB
			},
		),
		EventsStored: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "events_stored",
				Help: "Number of stored events by category and status",
			},
			[]string{"category", "status"},
		),
		EventsWithImage: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "events_with_image",
				Help: "Number of stored events that have an image",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EventOperationsTotal,
		m.ImageCacheLookups,
		m.LoginAttemptsTotal,
		m.ImageUploadBytes,
		m.EventsStored,
		m.EventsWithImage,
	)

	return m
}

// RecordEventOperation はイベント操作の結果を記録する（nil レシーバーは何もしない）
func (m *Metrics) RecordEventOperation(operation, result string) {
	if m == nil {
		return
	}
	m.EventOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCacheLookup は画像キャッシュの参照結果を記録する
func (m *Metrics) RecordCacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.ImageCacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordLogin はログイン試行の結果を記録する
func (m *Metrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveUpload は受け付けた画像サイズを記録する
func (m *Metrics) ObserveUpload(size int) {
	if m == nil {
		return
	}
	m.ImageUploadBytes.Observe(float64(size))
}

// EventCountKey は events_stored のラベルの組
type EventCountKey struct {
	Category string
	Status   string
}

// SetStoredEvents は集計結果でゲージを置き換える。集計に現れなくなった組は削除される
func (m *Metrics) SetStoredEvents(counts map[EventCountKey]int, withImage int) {
	if m == nil {
		return
	}
	m.EventsStored.Reset()
	for k, n := range counts {
		m.EventsStored.WithLabelValues(k.Category, k.Status).Set(float64(n))
	}
	m.EventsWithImage.Set(float64(withImage))
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
