package models

import (
	"time"

	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
)

// AvailabilityWindow is a recurring weekly interval during which a resource is offered.
type AvailabilityWindow struct {
	ID         string               `db:"id" json:"id"`
	ResourceID string               `db:"resource_id" json:"resource_id"`
	DayOfWeek  int                  `db:"day_of_week" json:"day_of_week"`
	StartTime  scheduling.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    scheduling.TimeOfDay `db:"end_time" json:"end_time"`
	StartDate  scheduling.Date      `db:"start_date" json:"start_date"`
	EndDate    scheduling.Date      `db:"end_date" json:"end_date"`
	Active     bool                 `db:"active" json:"active"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time            `db:"updated_at" json:"updated_at"`
}

// Slot projects the window onto the fields that matter for overlap checks.
func (w AvailabilityWindow) Slot() scheduling.WindowSlot {
	return scheduling.WindowSlot{
		ResourceID: w.ResourceID,
		DayOfWeek:  w.DayOfWeek,
		StartDate:  w.StartDate,
		EndDate:    w.EndDate,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
	}
}

// AvailabilityFilter captures list criteria for availability windows.
type AvailabilityFilter struct {
	ResourceID string
	DayOfWeek  *int
	ActiveOn   scheduling.Date
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
