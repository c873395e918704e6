package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("inventory:snapshot").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("inventory:snapshot").End(boom), boom)
	metrics.AddRows("inventory:snapshot", 3)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("inventory:snapshot", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("inventory:snapshot", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("inventory:snapshot")))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.rows.WithLabelValues("inventory:snapshot")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.AddRows("job", 1)
	require.NoError(t, metrics.Track("job").End(nil))
}
