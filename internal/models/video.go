package models

import "time"

// Video is the archived metadata record for one watch page. ContentID names
// the staged media blobs (thumbnail and video file) on disk.
type Video struct {
	ID               int64     `db:"id" json:"id"`
	WatchID          string    `db:"watch_id" json:"watchId"`
	Title            string    `db:"title" json:"title"`
	RegisteredAt     time.Time `db:"registered_at" json:"registeredAt"`
	ViewCount        int       `db:"view_count" json:"viewCount"`
	CommentCount     int       `db:"comment_count" json:"commentCount"`
	MylistCount      int       `db:"mylist_count" json:"mylistCount"`
	LikeCount        int       `db:"like_count" json:"likeCount"`
	OwnerID          *int64    `db:"owner_id" json:"ownerId"`
	DurationSeconds  int       `db:"duration_seconds" json:"durationSeconds"`
	Description      string    `db:"description" json:"description"`
	ShortDescription string    `db:"short_description" json:"shortDescription"`
	ContentID        string    `db:"content_id" json:"contentId"`
	TaskID           int64     `db:"task_id" json:"taskId"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}
