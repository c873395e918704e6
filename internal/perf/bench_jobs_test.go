package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-inventory/internal/jobs"
	"github.com/odyssey-erp/odyssey-inventory/jobs"
)

type flakyLister struct {
	inner    *catalogue
	failures int
}

func (f *flakyLister) List(ctx context.Context) ([]inventory.Item, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("timeout")
	}
	return f.inner.List(ctx)
}

func TestSnapshotJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	lister := &flakyLister{inner: newCatalogue(catalogueSize)}
	job := jobs.NewSnapshotJob(lister, t.TempDir(), nil, metrics)

	for i := 0; i < 20; i++ {
		task, err := jobs.NewSnapshotTask(time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	// A couple of failures must show up as failures, not vanish.
	lister.failures = 2
	for i := 0; i < 2; i++ {
		task, _ := jobs.NewSnapshotTask(time.Now())
		if err := job.Handle(context.Background(), task); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskInventorySnapshot, "status": "success"})
	failure := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskInventorySnapshot, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("snapshot success ratio too low: %f", ratio)
	}

	rows := metricValue(t, families, "odyssey_job_rows_total", map[string]string{"job": jobs.TaskInventorySnapshot})
	if rows != float64(20*catalogueSize) {
		t.Fatalf("rows written = %f, want %d", rows, 20*catalogueSize)
	}

	mean := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": jobs.TaskInventorySnapshot})
	if mean > 0.5 {
		t.Fatalf("snapshot duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
