package models

import "time"

const (
	TaskKindNew    = "new"
	TaskKindUpdate = "update"
)

// Task statuses. A task moves forward through these within one run;
// StatusFailed is reachable from every status except StatusCompleted.
const (
	StatusQueued      = "queued"
	StatusFetching    = "fetching"
	StatusDownloading = "downloading"
	StatusComment     = "comment"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

type Task struct {
	ID           int64     `db:"id" json:"id"`
	Kind         string    `db:"kind" json:"kind"`
	WatchID      string    `db:"watch_id" json:"watchId"`
	Status       string    `db:"status" json:"status"`
	VideoID      *int64    `db:"video_id" json:"videoId"`
	CommentCount *int      `db:"comment_count" json:"commentCount"`
	Error        *string   `db:"error" json:"error"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
