package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-inventory/internal/jobs"
)

// ItemLister is the part of the inventory store the snapshot reads.
type ItemLister interface {
	List(ctx context.Context) ([]inventory.Item, error)
}

// SnapshotJob writes the full collection as an inventory report CSV.
type SnapshotJob struct {
	Items   ItemLister
	Dir     string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSnapshotJob initialises the snapshot handler.
func NewSnapshotJob(items ItemLister, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotJob {
	return &SnapshotJob{
		Items:   items,
		Dir:     dir,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SnapshotName is the report file name for day.
func SnapshotName(day time.Time) string {
	base := strings.TrimSuffix(inventory.CSVFilename, filepath.Ext(inventory.CSVFilename))
	return fmt.Sprintf("%s-%s.csv", base, day.Format("20060102"))
}

// Handle executes one snapshot.
func (j *SnapshotJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Items == nil {
		return errors.New("inventory snapshot: handler not configured")
	}
	var payload SnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("inventory snapshot: payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	day := payload.ScheduledFor
	if day.IsZero() {
		day = j.clock()
	}

	tracker := j.Metrics.Track(TaskInventorySnapshot)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	items, err := j.Items.List(ctx)
	if err != nil {
		return fmt.Errorf("inventory snapshot: list: %w", err)
	}
	path, err := j.write(day, items)
	if err != nil {
		return err
	}
	j.Metrics.AddRows(TaskInventorySnapshot, int64(len(items)))
	j.logger().Info("inventory snapshot written", slog.String("path", path), slog.Int("rows", len(items)))
	return nil
}

// write replaces the day's file atomically.
func (j *SnapshotJob) write(day time.Time, items []inventory.Item) (string, error) {
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return "", fmt.Errorf("inventory snapshot: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(j.Dir, ".snapshot-*.csv")
	if err != nil {
		return "", fmt.Errorf("inventory snapshot: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := inventory.WriteCSV(tmp, items); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("inventory snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("inventory snapshot: close: %w", err)
	}
	path := filepath.Join(j.Dir, SnapshotName(day))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("inventory snapshot: rename: %w", err)
	}
	return path, nil
}

func (j *SnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
