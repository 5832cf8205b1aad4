package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeArchiveVideo = "video:archive"
	TypeRefreshAll   = "videos:refresh"
)

// ArchiveVideoTaskPayload carries only the task row id; kind, target and
// progress live in the database.
type ArchiveVideoTaskPayload struct {
	TaskID int64
}

// NewArchiveVideoTask builds the queue message for one archival task.
// MaxRetry(0): failure handling belongs to the task state machine, the
// queue must never re-run a failed task.
func NewArchiveVideoTask(taskID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(ArchiveVideoTaskPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeArchiveVideo, payload, asynq.MaxRetry(0)), nil
}

func NewRefreshAllTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeRefreshAll, nil), nil
}
