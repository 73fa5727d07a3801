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
// サービス層とリポジトリ層から利用する。
type MetricsCollector interface {
	RecordLocationCreated()
	RecordGeocodeResult(outcome string)
	RecordWriteFailure(table string)
	RecordHTTPStatus(statusCode int)
	RecordCreateLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	locationsCreated prometheus.Counter
	geocodeResults   *prometheus.CounterVec
	writeFailures    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	createLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		locationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geolog_locations_created_total",
			Help: "登録された地点の合計数",
		}),
		geocodeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geolog_geocode_results_total",
			Help: "ジオコーディング結果種別（hit/miss/error）の合計数",
		}, []string{"outcome"}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geolog_write_failures_total",
			Help: "テーブル別の書き込み失敗の合計数",
		}, []string{"table"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geolog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		createLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geolog_create_latency_seconds",
			Help:    "地点登録処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.locationsCreated,
		c.geocodeResults,
		c.writeFailures,
		c.httpStatus,
		c.createLatency,
	)

	return c
}

// RecordLocationCreated は地点登録の成功を記録する。
func (c *Collector) RecordLocationCreated() {
	c.locationsCreated.Inc()
}

// RecordGeocodeResult はジオコーディング結果種別を記録する。
func (c *Collector) RecordGeocodeResult(outcome string) {
	c.geocodeResults.WithLabelValues(outcome).Inc()
}

// RecordWriteFailure はテーブル別の書き込み失敗を記録する。
// 二重書き込みの不整合ウィンドウの観測に使う。
func (c *Collector) RecordWriteFailure(table string) {
	c.writeFailures.WithLabelValues(table).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCreateLatency は地点登録処理のレイテンシを記録する。
func (c *Collector) RecordCreateLatency(duration time.Duration) {
	c.createLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// ルーターが/metricsパスにマウントする。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
