package models

import "time"

// Resource is a bookable offering owned by a user.
type Resource struct {
	ID              string    `db:"id" json:"id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Price           float64   `db:"price" json:"price"`
	Link            string    `db:"link" json:"link"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ResourceFilter captures list criteria for resources.
type ResourceFilter struct {
	OwnerID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ResourceDeactivation summarises a resource removal cascade.
type ResourceDeactivation struct {
	ResourceID          string `json:"resource_id"`
	BookingsDeactivated int64  `json:"bookings_deactivated"`
	WindowsDeactivated  int64  `json:"windows_deactivated"`
}
