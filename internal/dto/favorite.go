package dto

import "github.com/Flexitaim/api-flexitaim/internal/models"

// FavoriteRequest favorites a resource. UserID defaults to the caller.
type FavoriteRequest struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id" validate:"required"`
}

// FavoriteResult reports whether the favorite was new, revived, or already active.
type FavoriteResult struct {
	Favorite    *models.Favorite `json:"favorite"`
	Created     bool             `json:"created"`
	Reactivated bool             `json:"reactivated"`
}
