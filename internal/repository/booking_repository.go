package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
)

const (
	bookingColumns     = "id, resource_id, subject_id, date, start_time, end_time, status, notes, active, created_at, updated_at"
	activeBookingScope = "active = TRUE"
)

var bookingSortFields = map[string]bool{
	"id":         true,
	"date":       true,
	"start_time": true,
	"end_time":   true,
	"status":     true,
	"created_at": true,
}

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindActiveByID returns an active booking or sql.ErrNoRows.
func (r *BookingRepository) FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1 AND %s", bookingColumns, activeBookingScope)
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

// ListActiveByResourceAndDate returns overlap candidates for a booking.
func (r *BookingRepository) ListActiveByResourceAndDate(ctx context.Context, exec sqlx.ExtContext, resourceID string, date scheduling.Date) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE resource_id = $1 AND date = $2 AND %s ORDER BY start_time", bookingColumns, activeBookingScope)
	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, resourceID, date); err != nil {
		return nil, fmt.Errorf("list bookings by resource and date: %w", err)
	}
	return bookings, nil
}

// ListActiveByResource returns the active bookings of a resource in calendar order.
func (r *BookingRepository) ListActiveByResource(ctx context.Context, resourceID string) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE resource_id = $1 AND %s ORDER BY date, start_time", bookingColumns, activeBookingScope)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, resourceID); err != nil {
		return nil, fmt.Errorf("list bookings by resource: %w", err)
	}
	return bookings, nil
}

// List returns bookings matching the filter with the total count. Inactive
// rows are only included when the filter asks for them.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, activeBookingScope)
	}
	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	page := Paginate(filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder, bookingSortFields, "created_at")

	listQuery := strings.TrimSpace(fmt.Sprintf("SELECT %s FROM bookings %s %s", bookingColumns, where, page.Clause()))
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	countQuery := strings.TrimSpace(fmt.Sprintf("SELECT COUNT(*) FROM bookings %s", where))
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// Create inserts a booking.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking payload is nil")
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusAvailable
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	booking.Active = true

	const query = `INSERT INTO bookings (id, resource_id, subject_id, date, start_time, end_time, status, notes, active, created_at, updated_at)
VALUES (:id, :resource_id, :subject_id, :date, :start_time, :end_time, :status, :notes, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an active booking.
func (r *BookingRepository) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking payload is nil")
	}
	booking.UpdatedAt = time.Now().UTC()

	const query = `UPDATE bookings SET resource_id = :resource_id, date = :date, start_time = :start_time, end_time = :end_time,
status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id AND active = TRUE`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft-deletes an active booking.
func (r *BookingRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	query := fmt.Sprintf("UPDATE bookings SET active = FALSE, updated_at = $2 WHERE id = $1 AND %s", activeBookingScope)
	result, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateByResource soft-deletes every active booking of a resource and
// returns how many rows changed. Already inactive rows are not counted.
func (r *BookingRepository) DeactivateByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) (int64, error) {
	query := fmt.Sprintf("UPDATE bookings SET active = FALSE, updated_at = $2 WHERE resource_id = $1 AND %s", activeBookingScope)
	result, err := r.exec(exec).ExecContext(ctx, query, resourceID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate bookings by resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("booking rows affected: %w", err)
	}
	return affected, nil
}
