package models

import "time"

// User is an archived platform account. Identified by the platform's numeric
// user id; a row is upserted on every encounter, never duplicated.
type User struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"userId"`
	Nickname          string    `db:"nickname" json:"nickname"`
	Description       string    `db:"description" json:"description"`
	RegisteredVersion string    `db:"registered_version" json:"registeredVersion"`
	IconURL           string    `db:"icon_url" json:"iconUrl"`
	ContentID         string    `db:"content_id" json:"contentId"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
