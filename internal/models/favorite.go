package models

import "time"

// Favorite marks a resource a user wants quick access to. Removing a favorite
// soft-deletes it; favoriting again reactivates the same row.
type Favorite struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FavoriteResource is a favorite joined with its active resource.
type FavoriteResource struct {
	Favorite
	Resource Resource `db:"resource" json:"resource"`
}

// FavoriteFilter captures list criteria for a user's favorites.
type FavoriteFilter struct {
	UserID    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
