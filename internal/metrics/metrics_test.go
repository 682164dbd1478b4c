package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを取得する。見つからない場合はnilを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		t.Fatalf("metric %s%v not found", name, labels)
	}
	return m.GetCounter().GetValue()
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordSignIn_CountsByResult はサインイン結果ごとにカウントされることを検証する。
func TestRecordSignIn_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn("success")
	c.RecordSignIn("success")
	c.RecordSignIn("invalid_credentials")

	if v := counterValue(t, reg, "magicalmoments_signin_total", map[string]string{"result": "success"}); v != 2 {
		t.Errorf("success = %v, want 2", v)
	}
	if v := counterValue(t, reg, "magicalmoments_signin_total", map[string]string{"result": "invalid_credentials"}); v != 1 {
		t.Errorf("invalid_credentials = %v, want 1", v)
	}
}

// TestRecordRoleResolution_CountsBySource はロール決定の情報源ごとにカウントされることを検証する。
func TestRecordRoleResolution_CountsBySource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	for _, source := range []string{"durable", "metadata", "default", "durable"} {
		c.RecordRoleResolution(source)
	}

	tests := map[string]float64{"durable": 2, "metadata": 1, "default": 1}
	for source, want := range tests {
		if v := counterValue(t, reg, "magicalmoments_role_resolution_total", map[string]string{"source": source}); v != want {
			t.Errorf("%s = %v, want %v", source, v, want)
		}
	}
}

// TestRecordStaleLookup_IncrementsCounter は破棄された検索結果のカウンタが増加することを検証する。
func TestRecordStaleLookup_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStaleLookup()
	c.RecordStaleLookup()
	c.RecordStaleLookup()

	if v := counterValue(t, reg, "magicalmoments_stale_role_lookup_total", nil); v != 3 {
		t.Errorf("stale lookups = %v, want 3", v)
	}
}

// TestRecordGuardDecision_Labels はルートガード判定が要求ロールと結果で区別されることを検証する。
func TestRecordGuardDecision_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("admin", "redirect")
	c.RecordGuardDecision("admin", "render")
	c.RecordGuardDecision("user", "auth_entry")
	c.RecordGuardDecision("admin", "redirect")

	if v := counterValue(t, reg, "magicalmoments_guard_decision_total",
		map[string]string{"required_role": "admin", "outcome": "redirect"}); v != 2 {
		t.Errorf("admin/redirect = %v, want 2", v)
	}
	if v := counterValue(t, reg, "magicalmoments_guard_decision_total",
		map[string]string{"required_role": "user", "outcome": "auth_entry"}); v != 1 {
		t.Errorf("user/auth_entry = %v, want 1", v)
	}
}

// TestRecordEventMutation_Labels はイベント変更が操作と結果で区別されることを検証する。
func TestRecordEventMutation_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEventMutation("insert", "ok")
	c.RecordEventMutation("delete", "rejected")

	if v := counterValue(t, reg, "magicalmoments_event_mutation_total",
		map[string]string{"op": "insert", "result": "ok"}); v != 1 {
		t.Errorf("insert/ok = %v, want 1", v)
	}
	if v := counterValue(t, reg, "magicalmoments_event_mutation_total",
		map[string]string{"op": "delete", "result": "rejected"}); v != 1 {
		t.Errorf("delete/rejected = %v, want 1", v)
	}
	if m := findMetric(t, reg, "magicalmoments_event_mutation_total",
		map[string]string{"op": "update", "result": "ok"}); m != nil {
		t.Error("update/ok should not exist")
	}
}

// TestRecordHTTPStatus_RecordsStatusCode はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_RecordsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(303)

	if v := counterValue(t, reg, "magicalmoments_http_status_total", map[string]string{"status_code": "200"}); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := counterValue(t, reg, "magicalmoments_http_status_total", map[string]string{"status_code": "303"}); v != 1 {
		t.Errorf("status 303 = %v, want 1", v)
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)
	c.RecordRequestLatency(50 * time.Millisecond)

	m := findMetric(t, reg, "magicalmoments_request_latency_seconds", nil)
	if m == nil {
		t.Fatal("magicalmoments_request_latency_seconds metric not found")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got < 0.19 || got > 0.21 {
		t.Errorf("sample sum = %v, want ~0.2", got)
	}
}

// TestRecordWorkerCounts_Add はワーカーの処理件数が加算されることを検証する。
func TestRecordWorkerCounts_Add(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfilesProvisioned(3)
	c.RecordProfilesProvisioned(0)
	c.RecordSessionsPurged(7)

	if v := counterValue(t, reg, "magicalmoments_profiles_provisioned_total", nil); v != 3 {
		t.Errorf("profiles provisioned = %v, want 3", v)
	}
	if v := counterValue(t, reg, "magicalmoments_sessions_purged_total", nil); v != 7 {
		t.Errorf("sessions purged = %v, want 7", v)
	}
}

// TestCollector_ImplementsMetricsCollector はインターフェース実装を検証する。
func TestCollector_ImplementsMetricsCollector(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}
