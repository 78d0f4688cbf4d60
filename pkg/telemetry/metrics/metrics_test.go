package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promptlens-dev/promptlens/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRequest("chat", "stream", "ok", 200*time.Millisecond)
	collector.RecordRequest("chat", "stream", "ok", 2*time.Second)
	collector.RecordRequest("embedding", "once", "upstream_error", time.Millisecond)

	rm := collector.requestMetrics
	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("chat", "stream", "ok")); got != 2 {
		t.Errorf("chat requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("embedding", "once", "upstream_error")); got != 1 {
		t.Errorf("embedding errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(rm.requestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_RecordRelay(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRelay("stream", 100, 90)
	collector.RecordRelay("once", 10, 10)

	rm := collector.requestMetrics
	if got := testutil.ToFloat64(rm.relayBytes.WithLabelValues("in")); got != 110 {
		t.Errorf("bytes in = %v", got)
	}
	if got := testutil.ToFloat64(rm.relayBytes.WithLabelValues("out")); got != 100 {
		t.Errorf("bytes out = %v", got)
	}
}

func TestCollector_Log(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordAppend(nil, []string{"input", "output"}, []string{"output"})
	collector.RecordAppend(errors.New("disk full"), []string{"input"}, nil)
	collector.RecordRotation()
	collector.RecordPruned(3)
	collector.RecordPruned(0)

	lm := collector.logMetrics
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ok appends", testutil.ToFloat64(lm.appends.WithLabelValues("ok")), 1},
		{"failed appends", testutil.ToFloat64(lm.appends.WithLabelValues("error")), 1},
		{"input entries", testutil.ToFloat64(lm.entries.WithLabelValues("input")), 1},
		{"truncated outputs", testutil.ToFloat64(lm.truncated.WithLabelValues("output")), 1},
		{"rotations", testutil.ToFloat64(lm.rotations), 1},
		{"pruned", testutil.ToFloat64(lm.pruned), 3},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("chat", "stream", "ok", time.Second)
	collector.RecordMalformedFrames(2)
	collector.RecordUpstreamError("timeout")

	if got := testutil.CollectAndCount(collector.requestMetrics.requestsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}

	var nilCollector *Collector
	nilCollector.RecordRequest("chat", "stream", "ok", time.Second)
	nilCollector.RecordRotation()
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordUpstreamError("unavailable")
	collector.RecordMalformedFrames(1)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_promptlens/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`test_upstream_errors_total{kind="unavailable"} 1`,
		"test_malformed_frames_total 1",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
