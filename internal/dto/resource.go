package dto

// CreateResourceRequest registers a bookable resource. OwnerID defaults to the caller.
type CreateResourceRequest struct {
	OwnerID         string  `json:"owner_id"`
	Name            string  `json:"name" validate:"required,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Price           float64 `json:"price" validate:"min=0"`
}
