package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSyncMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.ObserveMutation("tasks", "toggle", nil)
	m.ObserveMutation("tasks", "toggle", errors.New("boom"))
	m.IncRollback("tasks", "toggle")
	m.ObserveLoad("tasks", 120*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("tasks", "toggle", OutcomeSuccess)); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("tasks", "toggle", OutcomeFailure)); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.rollbacks.WithLabelValues("tasks", "toggle")); got != 1 {
		t.Fatalf("expected rollback=1, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "sync_load_duration_seconds", "resource", "tasks"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestRemoteMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRemoteMetrics(reg)
	m.Observe("bills", "insert", 10*time.Millisecond, nil)
	m.Observe("", "", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.operations.WithLabelValues("bills", "insert", OutcomeSuccess)); got != 1 {
		t.Fatalf("expected bills insert=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("unknown", "unknown", OutcomeFailure)); got != 1 {
		t.Fatalf("expected unknown failure=1, got %f", got)
	}
	if count := testutil.CollectAndCount(m.duration); count != 2 {
		t.Fatalf("expected 2 duration series, got %d", count)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	sync := NewSyncMetrics(nil)
	sync.ObserveMutation("tasks", "add", nil)
	sync.IncRollback("tasks", "add")
	sync.ObserveLoad("tasks", time.Second, nil)

	var nilSync *SyncMetrics
	nilSync.ObserveMutation("tasks", "add", nil)

	remote := NewRemoteMetrics(nil)
	remote.Observe("tasks", "select", time.Second, nil)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetHistogram().GetSampleSum(), nil
				}
			}
		}
		return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
