package dto

import (
	"time"

	"github.com/Flexitaim/api-flexitaim/internal/models"
)

// CreateBookingRequest reserves a resource slot. SubjectID defaults to the caller.
type CreateBookingRequest struct {
	ResourceID string  `json:"resource_id" validate:"required"`
	SubjectID  string  `json:"subject_id"`
	Date       string  `json:"date" validate:"required,ymd"`
	StartTime  string  `json:"start_time" validate:"required,hms"`
	EndTime    string  `json:"end_time" validate:"required,hms"`
	Status     string  `json:"status" validate:"omitempty,oneof=Available Confirmed Cancelled Completed"`
	Notes      *string `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateBookingRequest patches a booking. Moving it to another resource is
// re-checked for overlap there. CancelledBy decides who is told about a cancellation.
type UpdateBookingRequest struct {
	ResourceID  *string `json:"resource_id" validate:"omitempty,min=1"`
	Date        *string `json:"date" validate:"omitempty,ymd"`
	StartTime   *string `json:"start_time" validate:"omitempty,hms"`
	EndTime     *string `json:"end_time" validate:"omitempty,hms"`
	Status      *string `json:"status" validate:"omitempty,oneof=Available Confirmed Cancelled Completed"`
	Notes       *string `json:"notes" validate:"omitempty,max=1000"`
	CancelledBy string  `json:"cancelled_by" validate:"omitempty,oneof=owner subject"`
}

// BookingResponse decorates a booking with timestamps in the scheduling zone.
type BookingResponse struct {
	models.Booking
	CreatedAtLocal string `json:"created_at_local"`
	UpdatedAtLocal string `json:"updated_at_local"`
}

// NewBookingResponse renders b with local timestamps.
func NewBookingResponse(b models.Booking, loc *time.Location) BookingResponse {
	return BookingResponse{
		Booking:        b,
		CreatedAtLocal: formatLocal(b.CreatedAt, loc),
		UpdatedAtLocal: formatLocal(b.UpdatedAt, loc),
	}
}

// NewBookingResponses renders a list of bookings.
func NewBookingResponses(items []models.Booking, loc *time.Location) []BookingResponse {
	out := make([]BookingResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewBookingResponse(item, loc))
	}
	return out
}

// TicketResponse carries a signed check-in token and the QR image URL that encodes it.
type TicketResponse struct {
	BookingID string    `json:"booking_id"`
	Token     string    `json:"token"`
	QRURL     string    `json:"qr_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TicketVerification is returned when a ticket is scanned.
type TicketVerification struct {
	Valid   bool            `json:"valid"`
	Booking BookingResponse `json:"booking"`
}
