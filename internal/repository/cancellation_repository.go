package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Flexitaim/api-flexitaim/internal/models"
)

// CancellationRepository keeps the cancellation log of bookings.
type CancellationRepository struct {
	db *sqlx.DB
}

// NewCancellationRepository constructs the repository.
func NewCancellationRepository(db *sqlx.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

// Record appends a cancellation inside the booking's transaction.
func (r *CancellationRepository) Record(ctx context.Context, exec sqlx.ExtContext, c *models.BookingCancellation) error {
	if c == nil {
		return fmt.Errorf("cancellation payload is nil")
	}
	if exec == nil {
		exec = r.db
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Active = true
	c.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO booking_cancellations (id, booking_id, cancelled_by, previous_status, active, created_at)
VALUES (:id, :booking_id, :cancelled_by, :previous_status, :active, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, c); err != nil {
		return fmt.Errorf("insert cancellation: %w", err)
	}
	return nil
}

// ListByBooking returns the active cancellation records of a booking, oldest first.
func (r *CancellationRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.BookingCancellation, error) {
	const query = `SELECT id, booking_id, cancelled_by, previous_status, active, created_at
FROM booking_cancellations WHERE booking_id = $1 AND active = TRUE ORDER BY created_at`
	var out []models.BookingCancellation
	if err := r.db.SelectContext(ctx, &out, query, bookingID); err != nil {
		return nil, fmt.Errorf("list cancellations: %w", err)
	}
	return out, nil
}
