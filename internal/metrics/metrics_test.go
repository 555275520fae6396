package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCacheHit_IncrementsCounter はキャッシュヒットカウンタが増加することを検証する。
func TestRecordCacheHit_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("list")
	c.RecordCacheHit("list")
	c.RecordCacheHit("dashboard")

	if got := testutil.ToFloat64(c.cacheHit.WithLabelValues("list")); got != 2 {
		t.Errorf("list hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheHit.WithLabelValues("dashboard")); got != 1 {
		t.Errorf("dashboard hits = %v, want 1", got)
	}
}

// TestRecordCacheInvalidation_AddsRemovedCount は無効化件数が加算されることを検証する。
func TestRecordCacheInvalidation_AddsRemovedCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheInvalidation(3)
	c.RecordCacheInvalidation(2)

	if got := testutil.ToFloat64(c.cacheInvalidation); got != 5 {
		t.Errorf("counter = %v, want 5", got)
	}
}

// TestSetCacheEntries_SetsGauge はキャッシュエントリ数のゲージが設定されることを検証する。
func TestSetCacheEntries_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetCacheEntries(7)

	if got := testutil.ToFloat64(c.cacheEntries); got != 7 {
		t.Errorf("gauge = %v, want 7", got)
	}
}

// TestRecordQueryLatency_ObservesHistogram はクエリレイテンシが記録されることを検証する。
func TestRecordQueryLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordQueryLatency(50 * time.Millisecond)

	if got := testutil.CollectAndCount(c.queryLatency, "kakeibo_query_latency_seconds"); got != 1 {
		t.Errorf("collected series = %d, want 1", got)
	}
}

// TestRecordHTTPStatus_CountsByStatusCode はステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_CountsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("404")); got != 1 {
		t.Errorf("404 count = %v, want 1", got)
	}
}
