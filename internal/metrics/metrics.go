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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordSignIn(result string)
	RecordRoleResolution(source string)
	RecordStaleLookup()
	RecordGuardDecision(required, outcome string)
	RecordEventMutation(op, result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordProfilesProvisioned(count int)
	RecordSessionsPurged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns             *prometheus.CounterVec
	roleResolutions     *prometheus.CounterVec
	staleLookups        prometheus.Counter
	guardDecisions      *prometheus.CounterVec
	eventMutations      *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
	profilesProvisioned prometheus.Counter
	sessionsPurged      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magicalmoments_signin_total",
			Help: "結果別のサインイン試行数",
		}, []string{"result"}),
		roleResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magicalmoments_role_resolution_total",
			Help: "サインイン時のロール決定の情報源別件数",
		}, []string{"source"}),
		staleLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magicalmoments_stale_role_lookup_total",
			Help: "破棄された古いロール検索結果の合計数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magicalmoments_guard_decision_total",
			Help: "要求ロールと判定結果別のルートガード判定数",
		}, []string{"required_role", "outcome"}),
		eventMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magicalmoments_event_mutation_total",
			Help: "操作と結果別のイベント変更数",
		}, []string{"op", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magicalmoments_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "magicalmoments_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		profilesProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magicalmoments_profiles_provisioned_total",
			Help: "作成されたプロフィールの合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magicalmoments_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.roleResolutions,
		c.staleLookups,
		c.guardDecisions,
		c.eventMutations,
		c.httpStatus,
		c.requestLatency,
		c.profilesProvisioned,
		c.sessionsPurged,
	)

	return c
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordRoleResolution はロール決定の情報源を記録する。
func (c *Collector) RecordRoleResolution(source string) {
	c.roleResolutions.WithLabelValues(source).Inc()
}

// RecordStaleLookup は破棄したロール検索結果を記録する。
func (c *Collector) RecordStaleLookup() {
	c.staleLookups.Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(required, outcome string) {
	c.guardDecisions.WithLabelValues(required, outcome).Inc()
}

// RecordEventMutation はイベント変更の結果を記録する。
func (c *Collector) RecordEventMutation(op, result string) {
	c.eventMutations.WithLabelValues(op, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordProfilesProvisioned は作成したプロフィール数を記録する。
func (c *Collector) RecordProfilesProvisioned(count int) {
	c.profilesProvisioned.Add(float64(count))
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
