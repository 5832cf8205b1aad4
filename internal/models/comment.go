package models

import (
	"time"

	"github.com/lib/pq"
)

// Comment forks. Each fork has its own sequence-number space.
const (
	ForkOwner = "owner"
	ForkMain  = "main"
	ForkEasy  = "easy"
)

// Comment is an immutable archived comment. No is the platform-assigned
// per-fork sequence number, strictly increasing with recency.
type Comment struct {
	ID          int64          `db:"id" json:"id"`
	CommentID   string         `db:"comment_id" json:"commentId"`
	Body        string         `db:"body" json:"body"`
	Commands    pq.StringArray `db:"commands" json:"commands"`
	IsPremium   bool           `db:"is_premium" json:"isPremium"`
	NicoruCount int            `db:"nicoru_count" json:"nicoruCount"`
	No          int            `db:"no" json:"no"`
	PostedAt    time.Time      `db:"posted_at" json:"postedAt"`
	Score       int            `db:"score" json:"score"`
	Source      string         `db:"source" json:"source"`
	UserID      string         `db:"user_id" json:"userId"`
	VposMs      int            `db:"vpos_ms" json:"vposMs"`
	VideoID     int64          `db:"video_id" json:"videoId"`
	ThreadID    string         `db:"thread_id" json:"threadId"`
	Fork        string         `db:"fork" json:"fork"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}
