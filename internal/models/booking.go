package models

import (
	"time"

	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
)

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingStatusAvailable BookingStatus = "Available"
	BookingStatusConfirmed BookingStatus = "Confirmed"
	BookingStatusCancelled BookingStatus = "Cancelled"
	BookingStatusCompleted BookingStatus = "Completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusAvailable: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusAvailable, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// CanTransitionTo reports whether moving from s to next is allowed. Staying in
// the same state is always allowed.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CancelActor identifies who cancelled a booking, which decides the notification recipient.
type CancelActor string

const (
	CancelActorOwner   CancelActor = "owner"
	CancelActorSubject CancelActor = "subject"
)

// Booking reserves a resource for a subject on a concrete date.
type Booking struct {
	ID         string               `db:"id" json:"id"`
	ResourceID string               `db:"resource_id" json:"resource_id"`
	SubjectID  string               `db:"subject_id" json:"subject_id"`
	Date       scheduling.Date      `db:"date" json:"date"`
	StartTime  scheduling.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    scheduling.TimeOfDay `db:"end_time" json:"end_time"`
	Status     BookingStatus        `db:"status" json:"status"`
	Notes      *string              `db:"notes" json:"notes,omitempty"`
	Active     bool                 `db:"active" json:"active"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time            `db:"updated_at" json:"updated_at"`
}

// Slot projects the booking onto the fields that matter for overlap checks.
func (b Booking) Slot() scheduling.BookingSlot {
	return scheduling.BookingSlot{
		ResourceID: b.ResourceID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
}

// BookingFilter captures list criteria for bookings.
type BookingFilter struct {
	ResourceID      string
	SubjectID       string
	Status          *BookingStatus
	From            scheduling.Date
	To              scheduling.Date
	IncludeInactive bool
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// BookingCancellation is the audit record written when a booking is cancelled.
// The booking keeps its Cancelled status; the record only remembers who and when.
type BookingCancellation struct {
	ID             string        `db:"id" json:"id"`
	BookingID      string        `db:"booking_id" json:"booking_id"`
	CancelledBy    CancelActor   `db:"cancelled_by" json:"cancelled_by"`
	PreviousStatus BookingStatus `db:"previous_status" json:"previous_status"`
	Active         bool          `db:"active" json:"active"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
