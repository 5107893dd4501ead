// Package tasks defines the background jobs that keep market data fresh.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskSweepListings removes user submissions that have passed their expiry.
const TaskSweepListings = "listings.sweep_expired"

// TaskRefreshSnapshots reprices build orders whose savings snapshot is stale.
const TaskRefreshSnapshots = "buildorders.refresh_snapshots"

// RefreshSnapshotsPayload bounds one refresh run.
type RefreshSnapshotsPayload struct {
	Limit int `json:"limit"`
}

// NewSweepListingsTask builds the sweep task.
func NewSweepListingsTask() *asynq.Task {
	return asynq.NewTask(TaskSweepListings, nil)
}

// NewRefreshSnapshotsTask builds a refresh task for up to limit orders.
func NewRefreshSnapshotsTask(payload RefreshSnapshotsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefreshSnapshots, data), nil
}

// ParseRefreshSnapshotsPayload decodes a refresh task payload.
func ParseRefreshSnapshotsPayload(task *asynq.Task) (RefreshSnapshotsPayload, error) {
	var payload RefreshSnapshotsPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RefreshSnapshotsPayload{}, err
	}
	return payload, nil
}
