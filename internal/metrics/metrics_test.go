package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveCycle(time.Second, nil)
	r.RecordVerdict("4h", "BULLISH", true)
	r.RecordNoData("4h")
	r.RecordOrder("entry", nil)
	r.SetOpenPositions(1)
	r.RecordNotifyFailure()
	if r.Registry() != nil {
		t.Error("Expected nil registry for nil recorder")
	}
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveCycle(10*time.Millisecond, nil)
	r.ObserveCycle(10*time.Millisecond, errors.New("boom"))
	r.ObserveCycle(10*time.Millisecond, nil)
	r.RecordOrder("entry", nil)
	r.RecordOrder("exit", errors.New("rejected"))
	r.RecordVerdict("4h", "BULLISH", true)

	if got := counterValue(t, r, "mtfbot_cycles_total", map[string]string{"result": "ok"}); got != 2 {
		t.Errorf("Expected 2 ok cycles, got %v", got)
	}
	if got := counterValue(t, r, "mtfbot_cycles_total", map[string]string{"result": "error"}); got != 1 {
		t.Errorf("Expected 1 failed cycle, got %v", got)
	}
	if got := counterValue(t, r, "mtfbot_orders_total", map[string]string{"kind": "exit", "result": "rejected"}); got != 1 {
		t.Errorf("Expected 1 rejected exit, got %v", got)
	}
	if got := counterValue(t, r, "mtfbot_verdicts_total", map[string]string{"horizon": "4h", "satisfied": "true"}); got != 1 {
		t.Errorf("Expected 1 satisfied verdict, got %v", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordNoData("1d")
	if got := counterValue(t, b, "mtfbot_no_data_total", map[string]string{"horizon": "1d"}); got != 0 {
		t.Errorf("Expected registries to be independent, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.SetOpenPositions(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "mtfbot_open_positions 1") {
		t.Errorf("Expected gauge in output, got %s", rec.Body.String())
	}
}
