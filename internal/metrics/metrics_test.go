package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.SignalsTotal.WithLabelValues("long-short").Inc()
	m.PairsTotal.WithLabelValues("skipped").Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`scanner_signals_total{type="long-short"} 1`,
		`scanner_pairs_total{result="skipped"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewMetricsIndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.EmitErrors.Inc()

	families, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "scanner_emit_errors_total" && f.GetMetric()[0].GetCounter().GetValue() != 0 {
			t.Errorf("registries share state")
		}
	}
}
