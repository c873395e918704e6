package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventorySnapshot writes the inventory report to disk.
	TaskInventorySnapshot = "inventory:snapshot"
	// TaskIdempotencyCleanup purges old submission tokens.
	TaskIdempotencyCleanup = "inventory:idempotency_cleanup"
)

// SnapshotPayload carries scheduling metadata for a snapshot run.
type SnapshotPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// CleanupPayload configures one cleanup run.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewSnapshotTask constructs the inventory snapshot task.
func NewSnapshotTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SnapshotPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventorySnapshot, body, asynq.Queue(QueueDefault)), nil
}

// NewCleanupTask constructs the idempotency cleanup task.
func NewCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
