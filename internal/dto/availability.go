package dto

import (
	"time"

	"github.com/Flexitaim/api-flexitaim/internal/models"
)

// CreateAvailabilityRequest describes a new weekly availability window.
type CreateAvailabilityRequest struct {
	ResourceID string `json:"resource_id" validate:"required"`
	DayOfWeek  *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime  string `json:"start_time" validate:"required,hms"`
	EndTime    string `json:"end_time" validate:"required,hms"`
	StartDate  string `json:"start_date" validate:"required,ymd"`
	EndDate    string `json:"end_date" validate:"required,ymd"`
}

// UpdateAvailabilityRequest patches an existing window. Absent fields are kept.
type UpdateAvailabilityRequest struct {
	ResourceID *string `json:"resource_id" validate:"omitempty,min=1"`
	DayOfWeek  *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime  *string `json:"start_time" validate:"omitempty,hms"`
	EndTime    *string `json:"end_time" validate:"omitempty,hms"`
	StartDate  *string `json:"start_date" validate:"omitempty,ymd"`
	EndDate    *string `json:"end_date" validate:"omitempty,ymd"`
}

// BatchUpdateAvailabilityItem targets one window of a batch update.
type BatchUpdateAvailabilityItem struct {
	ID string `json:"id" validate:"required"`
	UpdateAvailabilityRequest
}

// AvailabilityResponse decorates a window with timestamps in the scheduling zone.
type AvailabilityResponse struct {
	models.AvailabilityWindow
	CreatedAtLocal string `json:"created_at_local"`
	UpdatedAtLocal string `json:"updated_at_local"`
}

// NewAvailabilityResponse renders w with local timestamps.
func NewAvailabilityResponse(w models.AvailabilityWindow, loc *time.Location) AvailabilityResponse {
	return AvailabilityResponse{
		AvailabilityWindow: w,
		CreatedAtLocal:     formatLocal(w.CreatedAt, loc),
		UpdatedAtLocal:     formatLocal(w.UpdatedAt, loc),
	}
}

// NewAvailabilityResponses renders a list of windows.
func NewAvailabilityResponses(items []models.AvailabilityWindow, loc *time.Location) []AvailabilityResponse {
	out := make([]AvailabilityResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewAvailabilityResponse(item, loc))
	}
	return out
}

func formatLocal(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
