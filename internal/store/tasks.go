package store

import (
	"nicoarch/internal/models"
)

func (s *Store) CreateTask(kind string, watchID string) (models.Task, error) {
	task := models.Task{}
	err := s.db.Get(&task, `
		INSERT INTO tasks (kind, watch_id, status)
		VALUES ($1, $2, $3)
		RETURNING *`,
		kind, watchID, models.StatusQueued)
	return task, err
}

func (s *Store) GetTask(id int64) (models.Task, error) {
	task := models.Task{}
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1", id)
	return task, err
}

func (s *Store) ListTasks(limit int) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks ORDER BY created_at DESC LIMIT $1", limit)
	return tasks, err
}

func (s *Store) SetTaskStatus(id int64, status string) error {
	_, err := s.db.Exec("UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	return err
}

func (s *Store) SetTaskVideo(id int64, videoID int64) error {
	_, err := s.db.Exec("UPDATE tasks SET video_id = $1, updated_at = NOW() WHERE id = $2", videoID, id)
	return err
}

func (s *Store) SetTaskCommentCount(id int64, count int) error {
	_, err := s.db.Exec("UPDATE tasks SET comment_count = $1, updated_at = NOW() WHERE id = $2", count, id)
	return err
}

// SetTaskFailed marks the task failed and records the causing error. This is
// the only user-visible failure signal.
func (s *Store) SetTaskFailed(id int64, message string) error {
	_, err := s.db.Exec("UPDATE tasks SET status = $1, error = $2, updated_at = NOW() WHERE id = $3",
		models.StatusFailed, message, id)
	return err
}
