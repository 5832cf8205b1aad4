package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"
	"nicoarch/pkg/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ErrVideoNotFound means the platform reports no such video. Fatal to the
// task, never retried.
var ErrVideoNotFound = errors.New("video not found")

// phase tags select the compensating action when a task fails partway.
type phase string

const (
	phaseFetch    phase = "fetching"
	phaseDownload phase = "downloading"
	phaseSync     phase = "comment"
)

type TaskHandler struct {
	store       Store
	nico        Platform
	asynqClient tasks.TaskEnqueuer
	contentsDir string
}

func NewTaskHandler(store Store, nico Platform, asynqClient tasks.TaskEnqueuer, contentsDir string) *TaskHandler {
	return &TaskHandler{
		store:       store,
		nico:        nico,
		asynqClient: asynqClient,
		contentsDir: contentsDir,
	}
}

// HandleArchiveTask processes one archival task end to end. A task failure
// is recorded on the task row and compensated; it is never returned to the
// queue, so the worker always proceeds to the next task.
func (h *TaskHandler) HandleArchiveTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ArchiveVideoTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	task, err := h.store.GetTask(p.TaskID)
	if err != nil {
		return fmt.Errorf("failed to get task %d: %w", p.TaskID, err)
	}

	log.Printf("Starting task %d (%s %s)", task.ID, task.Kind, task.WatchID)
	if err := h.runTask(ctx, task); err != nil {
		log.Printf("Task %d failed: %v", task.ID, err)
	}
	return nil
}

func (h *TaskHandler) runTask(ctx context.Context, task models.Task) error {
	var (
		video    models.Video
		snapshot *models.Video
		watch    *niconico.WatchData
		err      error
	)

	if err = h.store.SetTaskStatus(task.ID, models.StatusFetching); err != nil {
		return h.fail(task, phaseFetch, nil, 0, time.Time{}, err)
	}
	if task.Kind == models.TaskKindUpdate {
		video, snapshot, watch, err = h.fetchUpdate(ctx, task)
	} else {
		video, watch, err = h.fetchNew(ctx, task)
	}
	if err != nil {
		return h.fail(task, phaseFetch, snapshot, 0, time.Time{}, err)
	}
	if err = h.store.SetTaskVideo(task.ID, video.ID); err != nil {
		return h.fail(task, phaseFetch, snapshot, 0, time.Time{}, err)
	}

	if task.Kind == models.TaskKindNew {
		if err = h.store.SetTaskStatus(task.ID, models.StatusDownloading); err != nil {
			return h.fail(task, phaseDownload, snapshot, 0, time.Time{}, err)
		}
		if err = h.download(ctx, watch, video); err != nil {
			return h.fail(task, phaseDownload, snapshot, 0, time.Time{}, err)
		}
	}

	if err = h.store.SetTaskStatus(task.ID, models.StatusComment); err != nil {
		return h.fail(task, phaseSync, snapshot, video.ID, time.Now(), err)
	}
	syncStart := time.Now()
	syncer := newCommentSyncer(h.store, h.nico)
	count, err := syncer.Sync(ctx, task, video, watch)
	if err != nil {
		return h.fail(task, phaseSync, snapshot, video.ID, syncStart, err)
	}

	if err = h.store.SetTaskStatus(task.ID, models.StatusCompleted); err != nil {
		return h.fail(task, phaseSync, snapshot, video.ID, syncStart, err)
	}
	log.Printf("Task %d completed: %d comments archived for %s", task.ID, count, task.WatchID)
	return nil
}

// fail marks the task failed with the causing error and runs the
// compensating action for the phase that was reached.
func (h *TaskHandler) fail(task models.Task, ph phase, snapshot *models.Video, videoID int64, syncStart time.Time, cause error) error {
	if err := h.store.SetTaskFailed(task.ID, cause.Error()); err != nil {
		log.Printf("Failed to mark task %d failed: %v", task.ID, err)
	}
	h.compensate(task, ph, snapshot, videoID, syncStart)
	return cause
}

// compensate restores storage to a consistent pre-phase state. Best effort:
// a failure while compensating is logged, never propagated.
func (h *TaskHandler) compensate(task models.Task, ph phase, snapshot *models.Video, videoID int64, syncStart time.Time) {
	if ph == phaseSync && videoID != 0 {
		if err := h.store.DeleteCommentsSince(videoID, syncStart); err != nil {
			log.Printf("Rollback: failed to delete comments for video %d: %v", videoID, err)
		}
	}
	switch {
	case task.Kind == models.TaskKindNew:
		if err := h.store.DeleteVideoByTaskID(task.ID); err != nil {
			log.Printf("Rollback: failed to delete video for task %d: %v", task.ID, err)
		}
	case snapshot != nil:
		if err := h.store.RestoreVideo(*snapshot); err != nil {
			log.Printf("Rollback: failed to restore video %d: %v", snapshot.ID, err)
		}
	}
}

// fetchNew captures the metadata of a not-yet-archived video and creates its
// document, together with its owner's.
func (h *TaskHandler) fetchNew(ctx context.Context, task models.Task) (models.Video, *niconico.WatchData, error) {
	summary, watch, err := h.lookup(ctx, task.WatchID)
	if err != nil {
		return models.Video{}, nil, err
	}

	ownerID, err := h.syncOwner(ctx, watch)
	if err != nil {
		return models.Video{}, nil, err
	}

	video := models.Video{
		WatchID:          task.WatchID,
		Title:            watch.Video.Title,
		RegisteredAt:     watch.Video.RegisteredAt,
		ViewCount:        watch.Video.Count.View,
		CommentCount:     watch.Video.Count.Comment,
		MylistCount:      watch.Video.Count.Mylist,
		LikeCount:        watch.Video.Count.Like,
		OwnerID:          ownerID,
		DurationSeconds:  watch.Video.Duration,
		Description:      watch.Video.Description,
		ShortDescription: summary.ShortDescription,
		ContentID:        uuid.NewString(),
		TaskID:           task.ID,
	}
	inserted, err := h.store.InsertVideo(video)
	if err != nil {
		return models.Video{}, nil, fmt.Errorf("failed to insert video: %w", err)
	}
	return inserted, watch, nil
}

// fetchUpdate refreshes an already archived video in place. The stored row
// is snapshotted before being overwritten so a later failure can roll back.
func (h *TaskHandler) fetchUpdate(ctx context.Context, task models.Task) (models.Video, *models.Video, *niconico.WatchData, error) {
	snapshot, err := h.store.GetVideoByWatchID(task.WatchID)
	if err != nil {
		return models.Video{}, nil, nil, fmt.Errorf("failed to load archived video %s: %w", task.WatchID, err)
	}

	summary, watch, err := h.lookup(ctx, task.WatchID)
	if err != nil {
		return models.Video{}, nil, nil, err
	}

	ownerID, err := h.syncOwner(ctx, watch)
	if err != nil {
		return models.Video{}, nil, nil, err
	}

	updated := snapshot
	updated.Title = watch.Video.Title
	updated.RegisteredAt = watch.Video.RegisteredAt
	updated.ViewCount = watch.Video.Count.View
	updated.CommentCount = watch.Video.Count.Comment
	updated.MylistCount = watch.Video.Count.Mylist
	updated.LikeCount = watch.Video.Count.Like
	updated.OwnerID = ownerID
	updated.DurationSeconds = watch.Video.Duration
	updated.Description = watch.Video.Description
	updated.ShortDescription = summary.ShortDescription
	updated.TaskID = task.ID

	if err := h.store.UpdateVideoMetadata(updated); err != nil {
		return models.Video{}, nil, nil, fmt.Errorf("failed to update video: %w", err)
	}
	return updated, &snapshot, watch, nil
}

func (h *TaskHandler) lookup(ctx context.Context, watchID string) (*niconico.VideoSummary, *niconico.WatchData, error) {
	summary, err := h.nico.GetVideo(ctx, watchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up video %s: %w", watchID, err)
	}
	if summary == nil {
		return nil, nil, ErrVideoNotFound
	}
	watch, err := h.nico.GetWatchData(ctx, watchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get watch data for %s: %w", watchID, err)
	}
	return summary, watch, nil
}

// syncOwner upserts the video owner's account record and stages its icon
// blob. The icon is re-staged only when its URL changed since the last
// encounter. Returns nil when the owner cannot be resolved.
func (h *TaskHandler) syncOwner(ctx context.Context, watch *niconico.WatchData) (*int64, error) {
	if watch.Owner == nil {
		return nil, nil
	}
	userData, err := h.nico.GetUser(ctx, watch.Owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up owner %d: %w", watch.Owner.ID, err)
	}
	if userData == nil {
		return nil, nil
	}

	known := true
	previous, err := h.store.GetUserByPlatformID(userData.ID)
	if errors.Is(err, sql.ErrNoRows) {
		known = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up stored owner %d: %w", userData.ID, err)
	}

	contentID := uuid.NewString()
	if known {
		contentID = previous.ContentID
	}
	user, err := h.store.UpsertUser(models.User{
		UserID:            userData.ID,
		Nickname:          userData.Nickname,
		Description:       userData.Description,
		RegisteredVersion: userData.RegisteredVersion,
		IconURL:           userData.Icons.Large,
		ContentID:         contentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert owner %d: %w", userData.ID, err)
	}

	if !known || previous.IconURL != userData.Icons.Large {
		if err := h.nico.DownloadFile(ctx, userData.Icons.Large, h.iconPath(user.ContentID)); err != nil {
			return nil, fmt.Errorf("failed to stage owner icon: %w", err)
		}
	}
	return &user.ID, nil
}

// HandleRefreshAllTask creates and enqueues an incremental update task for
// every archived video. Driven by the scheduler.
func (h *TaskHandler) HandleRefreshAllTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Scheduling refresh for archived videos...")

	videos, err := h.store.ListVideos(1000)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}

	for _, v := range videos {
		task, err := h.store.CreateTask(models.TaskKindUpdate, v.WatchID)
		if err != nil {
			log.Printf("failed to create update task for %s: %v", v.WatchID, err)
			continue
		}
		job, err := tasks.NewArchiveVideoTask(task.ID)
		if err != nil {
			log.Printf("failed to create archive task for %s: %v", v.WatchID, err)
			continue
		}
		if _, err := h.asynqClient.Enqueue(job); err != nil {
			log.Printf("failed to enqueue archive task for %s: %v", v.WatchID, err)
			continue
		}
	}

	log.Println("Finished scheduling refresh.")
	return nil
}
