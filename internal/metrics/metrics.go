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
// ミドルウェア、リポジトリ、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordQueryLatency(operation string, duration time.Duration)
	RecordAssessmentTransition(status string)
	RecordReviewDecision(status string)
	RecordAbandonedDeleted(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	queryLatency     *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	reviewDecisions  *prometheus.CounterVec
	abandonedDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverfront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "serverfront_query_latency_seconds",
			Help:    "リポジトリ操作ごとのクエリレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverfront_assessment_transitions_total",
			Help: "遷移先ステータス別のアセスメント状態遷移数",
		}, []string{"status"}),
		reviewDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serverfront_review_decisions_total",
			Help: "審査ポリシーの判定結果別の件数",
		}, []string{"status"}),
		abandonedDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serverfront_abandoned_assessments_deleted_total",
			Help: "放置されたアセスメントの削除件数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.queryLatency,
		c.transitions,
		c.reviewDecisions,
		c.abandonedDeleted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordQueryLatency はリポジトリ操作のレイテンシを記録する。
func (c *Collector) RecordQueryLatency(operation string, duration time.Duration) {
	c.queryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAssessmentTransition はアセスメントの状態遷移を記録する。
func (c *Collector) RecordAssessmentTransition(status string) {
	c.transitions.WithLabelValues(status).Inc()
}

// RecordReviewDecision は審査ポリシーの判定結果を記録する。
func (c *Collector) RecordReviewDecision(status string) {
	c.reviewDecisions.WithLabelValues(status).Inc()
}

// RecordAbandonedDeleted は削除したアセスメント件数を記録する。
func (c *Collector) RecordAbandonedDeleted(count int) {
	c.abandonedDeleted.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)                     {}
func (Nop) RecordQueryLatency(string, time.Duration) {}
func (Nop) RecordAssessmentTransition(string)        {}
func (Nop) RecordReviewDecision(string)              {}
func (Nop) RecordAbandonedDeleted(int)               {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
