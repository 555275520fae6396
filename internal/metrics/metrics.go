// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordCacheHit(endpoint string)
	RecordCacheMiss(endpoint string)
	RecordCacheInvalidation(removed int)
	RecordQueryLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	SetCacheEntries(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit          *prometheus.CounterVec
	cacheMiss         *prometheus.CounterVec
	cacheInvalidation prometheus.Counter
	cacheEntries      prometheus.Gauge
	queryLatency      prometheus.Histogram
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_cache_hit_total",
			Help: "結果キャッシュヒットの合計数",
		}, []string{"endpoint"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_cache_miss_total",
			Help: "結果キャッシュミスの合計数",
		}, []string{"endpoint"}),
		cacheInvalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_cache_invalidation_total",
			Help: "変更操作で無効化されたキャッシュエントリの合計数",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kakeibo_cache_entries",
			Help: "結果キャッシュの現在のエントリ数",
		}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kakeibo_query_latency_seconds",
			Help:    "支出クエリのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.cacheInvalidation,
		c.cacheEntries,
		c.queryLatency,
		c.httpStatus,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(endpoint string) {
	c.cacheHit.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(endpoint string) {
	c.cacheMiss.WithLabelValues(endpoint).Inc()
}

// RecordCacheInvalidation は無効化されたエントリ数を記録する。
func (c *Collector) RecordCacheInvalidation(removed int) {
	c.cacheInvalidation.Add(float64(removed))
}

// SetCacheEntries は現在のキャッシュエントリ数を設定する。
func (c *Collector) SetCacheEntries(count int) {
	c.cacheEntries.Set(float64(count))
}

// RecordQueryLatency は支出クエリのレイテンシを記録する。
func (c *Collector) RecordQueryLatency(duration time.Duration) {
	c.queryLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
