package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-inventory/internal/jobs"
)

type stubLister struct {
	items []inventory.Item
	err   error
}

func (s stubLister) List(context.Context) ([]inventory.Item, error) {
	return s.items, s.err
}

type stubCleaner struct {
	removed   int64
	err       error
	retention time.Duration
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return s.removed, s.err
}

func counterValue(t *testing.T, registry *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSnapshotName(t *testing.T) {
	day := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "inventory_report-20240309.csv", SnapshotName(day))
}

func TestSnapshotJobWritesReport(t *testing.T) {
	dir := t.TempDir()
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	items := []inventory.Item{
		{ID: "1", Name: "Tea", Description: "Ceylon, black", Price: "LKR 300.00"},
		{ID: "2", Name: "Rice", Description: "Samba", Price: "LKR 250"},
	}
	job := NewSnapshotJob(stubLister{items: items}, dir, nil, metrics)

	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	task, err := NewSnapshotTask(day)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	body, err := os.ReadFile(filepath.Join(dir, "inventory_report-20240309.csv"))
	require.NoError(t, err)
	expected := "Name,Description,Price (LKR)\r\n" +
		"Tea,\"Ceylon, black\",LKR 300.00\r\n" +
		"Rice,Samba,LKR 250\r\n"
	assert.Equal(t, expected, string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1.0, counterValue(t, registry, "odyssey_jobs_total", "status", "success"))
	assert.Equal(t, 2.0, counterValue(t, registry, "odyssey_job_rows_total", "job", TaskInventorySnapshot))
}

func TestSnapshotJobDefaultsToToday(t *testing.T) {
	dir := t.TempDir()
	job := NewSnapshotJob(stubLister{}, dir, nil, nil)
	job.clock = func() time.Time { return time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskInventorySnapshot, nil)))
	_, err := os.Stat(filepath.Join(dir, "inventory_report-20250102.csv"))
	assert.NoError(t, err)
}

func TestSnapshotJobListFailure(t *testing.T) {
	dir := t.TempDir()
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewSnapshotJob(stubLister{err: errors.New("db down")}, dir, nil, metrics)

	task, err := NewSnapshotTask(time.Now())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1.0, counterValue(t, registry, "odyssey_jobs_total", "status", "failure"))
}

func TestSnapshotJobRejectsBadPayload(t *testing.T) {
	job := NewSnapshotJob(stubLister{}, t.TempDir(), nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskInventorySnapshot, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestCleanupJob(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	cleaner := &stubCleaner{removed: 4}
	job := NewCleanupJob(cleaner, nil, metrics)

	task, err := NewCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.retention)
	assert.Equal(t, 4.0, counterValue(t, registry, "odyssey_job_rows_total", "job", TaskIdempotencyCleanup))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, DefaultRetention, cleaner.retention)
}

func TestCleanupJobFailure(t *testing.T) {
	job := NewCleanupJob(&stubCleaner{err: errors.New("timeout")}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil))
	assert.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

type stubEnqueuer struct {
	calls int
	err   error
}

func (s *stubEnqueuer) EnqueueSnapshot(context.Context) (*asynq.TaskInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "snap-1", Queue: QueueDefault}, nil
}

func serve(h *Handler, method, path string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.MountRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandlerHealth(t *testing.T) {
	rec := serve(NewHandler(nil, nil, nil), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rec.Body.String())

	inspector := stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1, Retry: 1, Archived: 2}}
	rec = serve(NewHandler(inspector, nil, nil), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":1,"failed":3}`, rec.Body.String())

	rec = serve(NewHandler(stubInspector{err: errors.New("redis gone")}, nil, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerSnapshotTrigger(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	rec := serve(NewHandler(nil, enqueuer, nil), http.MethodPost, "/inventory-snapshot")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "snap-1", body["task_id"])
	assert.Equal(t, 1, enqueuer.calls)

	rec = serve(NewHandler(nil, &stubEnqueuer{err: asynq.ErrTaskIDConflict}, nil), http.MethodPost, "/inventory-snapshot")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "already queued")

	rec = serve(NewHandler(nil, &stubEnqueuer{err: errors.New("redis gone")}, nil), http.MethodPost, "/inventory-snapshot")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewHandler(nil, nil, nil), http.MethodPost, "/inventory-snapshot")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}
