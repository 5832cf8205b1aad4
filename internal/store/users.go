package store

import (
	"nicoarch/internal/models"
)

func (s *Store) GetUserByPlatformID(userID int64) (models.User, error) {
	user := models.User{}
	err := s.db.Get(&user, "SELECT * FROM users WHERE user_id = $1", userID)
	return user, err
}

// UpsertUser inserts a new user or updates an existing one based on the
// platform user id. The locally generated content id of an existing row is
// kept so already staged icon blobs stay addressable.
func (s *Store) UpsertUser(u models.User) (models.User, error) {
	query := `
		INSERT INTO users (user_id, nickname, description, registered_version, icon_url, content_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			nickname = EXCLUDED.nickname,
			description = EXCLUDED.description,
			registered_version = EXCLUDED.registered_version,
			icon_url = EXCLUDED.icon_url,
			updated_at = NOW()
		RETURNING *
	`
	user := models.User{}
	err := s.db.Get(&user, query, u.UserID, u.Nickname, u.Description, u.RegisteredVersion, u.IconURL, u.ContentID)
	return user, err
}
