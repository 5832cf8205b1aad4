package store

import (
	"database/sql"
	"errors"
	"time"

	"nicoarch/internal/models"
)

// InsertComments appends a batch of comments. This is a plain insert, not an
// upsert: the sync engine's high-water-mark filtering is the sole defense
// against duplicates.
func (s *Store) InsertComments(comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	_, err := s.db.NamedExec(`
		INSERT INTO comments (
			comment_id, body, commands, is_premium, nicoru_count, no,
			posted_at, score, source, user_id, vpos_ms,
			video_id, thread_id, fork, created_at
		) VALUES (
			:comment_id, :body, :commands, :is_premium, :nicoru_count, :no,
			:posted_at, :score, :source, :user_id, :vpos_ms,
			:video_id, :thread_id, :fork, :created_at
		)`, comments)
	return err
}

// LatestCommentNo returns the sequence number of the most recently stored
// comment for (video, fork), or nil when none has been archived yet.
func (s *Store) LatestCommentNo(videoID int64, fork string) (*int, error) {
	var no int
	err := s.db.Get(&no, `
		SELECT no FROM comments
		WHERE video_id = $1 AND fork = $2
		ORDER BY no DESC
		LIMIT 1`, videoID, fork)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &no, nil
}

// DeleteCommentsSince removes every comment for the video persisted at or
// after the given instant. Rollback for an aborted sync phase.
func (s *Store) DeleteCommentsSince(videoID int64, since time.Time) error {
	_, err := s.db.Exec("DELETE FROM comments WHERE video_id = $1 AND created_at >= $2", videoID, since)
	return err
}

func (s *Store) CountComments(videoID int64) (int, error) {
	var count int
	err := s.db.Get(&count, "SELECT COUNT(*) FROM comments WHERE video_id = $1", videoID)
	return count, err
}
