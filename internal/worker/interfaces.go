package worker

import (
	"context"
	"time"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"
)

// Store is the slice of the archive database the worker needs. Implemented
// by *store.Store, and by an in-memory fake in tests.
type Store interface {
	GetTask(id int64) (models.Task, error)
	CreateTask(kind string, watchID string) (models.Task, error)
	SetTaskStatus(id int64, status string) error
	SetTaskVideo(id int64, videoID int64) error
	SetTaskCommentCount(id int64, count int) error
	SetTaskFailed(id int64, message string) error

	InsertVideo(v models.Video) (models.Video, error)
	GetVideoByWatchID(watchID string) (models.Video, error)
	ListVideos(limit int) ([]models.Video, error)
	UpdateVideoMetadata(v models.Video) error
	RestoreVideo(v models.Video) error
	DeleteVideoByTaskID(taskID int64) error

	GetUserByPlatformID(userID int64) (models.User, error)
	UpsertUser(u models.User) (models.User, error)

	InsertComments(comments []models.Comment) error
	LatestCommentNo(videoID int64, fork string) (*int, error)
	DeleteCommentsSince(videoID int64, since time.Time) error
}

// Platform is the slice of the niconico client the worker needs. Implemented
// by *niconico.Client, and by a fake feed in tests.
type Platform interface {
	GetVideo(ctx context.Context, watchID string) (*niconico.VideoSummary, error)
	GetWatchData(ctx context.Context, watchID string) (*niconico.WatchData, error)
	GetUser(ctx context.Context, userID int64) (*niconico.User, error)
	GetComments(ctx context.Context, watch *niconico.WatchData, when int64, threadKey string) (*niconico.CommentPage, error)
	GetThreadKey(ctx context.Context, videoID string) (string, error)
	ListOutputs(watch *niconico.WatchData) []niconico.Output
	DownloadFile(ctx context.Context, url string, path string) error
	UserSession() string
}
