package store

import (
	"nicoarch/internal/models"
)

func (s *Store) InsertVideo(v models.Video) (models.Video, error) {
	video := models.Video{}
	err := s.db.Get(&video, `
		INSERT INTO videos (
			watch_id, title, registered_at,
			view_count, comment_count, mylist_count, like_count,
			owner_id, duration_seconds, description, short_description,
			content_id, task_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING *`,
		v.WatchID, v.Title, v.RegisteredAt,
		v.ViewCount, v.CommentCount, v.MylistCount, v.LikeCount,
		v.OwnerID, v.DurationSeconds, v.Description, v.ShortDescription,
		v.ContentID, v.TaskID)
	return video, err
}

func (s *Store) GetVideoByWatchID(watchID string) (models.Video, error) {
	video := models.Video{}
	err := s.db.Get(&video, "SELECT * FROM videos WHERE watch_id = $1", watchID)
	return video, err
}

func (s *Store) ListVideos(limit int) ([]models.Video, error) {
	videos := []models.Video{}
	err := s.db.Select(&videos, "SELECT * FROM videos ORDER BY created_at DESC LIMIT $1", limit)
	return videos, err
}

// UpdateVideoMetadata refreshes the mutable metadata of an archived video in
// place, keyed by its watch id. ContentID and WatchID never change.
func (s *Store) UpdateVideoMetadata(v models.Video) error {
	_, err := s.db.Exec(`
		UPDATE videos
		SET title = $1, registered_at = $2,
			view_count = $3, comment_count = $4, mylist_count = $5, like_count = $6,
			owner_id = $7, duration_seconds = $8, description = $9, short_description = $10,
			task_id = $11, updated_at = NOW()
		WHERE watch_id = $12`,
		v.Title, v.RegisteredAt,
		v.ViewCount, v.CommentCount, v.MylistCount, v.LikeCount,
		v.OwnerID, v.DurationSeconds, v.Description, v.ShortDescription,
		v.TaskID, v.WatchID)
	return err
}

// RestoreVideo overwrites a video row with a previously taken snapshot.
// Used only as rollback for a failed update task.
func (s *Store) RestoreVideo(v models.Video) error {
	_, err := s.db.Exec(`
		UPDATE videos
		SET title = $1, registered_at = $2,
			view_count = $3, comment_count = $4, mylist_count = $5, like_count = $6,
			owner_id = $7, duration_seconds = $8, description = $9, short_description = $10,
			task_id = $11, updated_at = $12
		WHERE id = $13`,
		v.Title, v.RegisteredAt,
		v.ViewCount, v.CommentCount, v.MylistCount, v.LikeCount,
		v.OwnerID, v.DurationSeconds, v.Description, v.ShortDescription,
		v.TaskID, v.UpdatedAt, v.ID)
	return err
}

func (s *Store) DeleteVideoByTaskID(taskID int64) error {
	_, err := s.db.Exec("DELETE FROM videos WHERE task_id = $1", taskID)
	return err
}
