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
	"github.com/lib/pq"

	"github.com/Flexitaim/api-flexitaim/internal/models"
)

const (
	availabilityColumns     = "id, resource_id, day_of_week, start_time, end_time, start_date, end_date, active, created_at, updated_at"
	activeAvailabilityScope = "active = TRUE"
)

var availabilitySortFields = map[string]bool{
	"id":          true,
	"day_of_week": true,
	"start_date":  true,
	"end_date":    true,
	"start_time":  true,
	"end_time":    true,
	"created_at":  true,
}

// AvailabilityRepository persists weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindActiveByID returns an active window or sql.ErrNoRows.
func (r *AvailabilityRepository) FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE id = $1 AND %s", availabilityColumns, activeAvailabilityScope)
	var window models.AvailabilityWindow
	if err := sqlx.GetContext(ctx, r.exec(exec), &window, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find availability window: %w", err)
	}
	return &window, nil
}

// FindActiveByIDs returns the active windows among ids keyed by id.
func (r *AvailabilityRepository) FindActiveByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.AvailabilityWindow, error) {
	found := make(map[string]models.AvailabilityWindow, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE id = ANY($1) AND %s", availabilityColumns, activeAvailabilityScope)
	var windows []models.AvailabilityWindow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &windows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find availability windows: %w", err)
	}
	for _, w := range windows {
		found[w.ID] = w
	}
	return found, nil
}

// ListActiveByResource returns the active windows of a resource ordered by weekday and time.
func (r *AvailabilityRepository) ListActiveByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE resource_id = $1 AND %s ORDER BY day_of_week, start_time, start_date", availabilityColumns, activeAvailabilityScope)
	var windows []models.AvailabilityWindow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &windows, query, resourceID); err != nil {
		return nil, fmt.Errorf("list availability windows by resource: %w", err)
	}
	return windows, nil
}

// ListActiveByResourceAndDay returns overlap candidates for a single window.
func (r *AvailabilityRepository) ListActiveByResourceAndDay(ctx context.Context, exec sqlx.ExtContext, resourceID string, dayOfWeek int) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE resource_id = $1 AND day_of_week = $2 AND %s", availabilityColumns, activeAvailabilityScope)
	var windows []models.AvailabilityWindow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &windows, query, resourceID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability windows by day: %w", err)
	}
	return windows, nil
}

// ListActiveByResources returns the active windows of every listed resource.
func (r *AvailabilityRepository) ListActiveByResources(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string) ([]models.AvailabilityWindow, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE resource_id = ANY($1) AND %s", availabilityColumns, activeAvailabilityScope)
	var windows []models.AvailabilityWindow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &windows, query, pq.Array(resourceIDs)); err != nil {
		return nil, fmt.Errorf("list availability windows by resources: %w", err)
	}
	return windows, nil
}

// List returns active windows matching the filter with the total count.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilityWindow, int, error) {
	conditions := []string{activeAvailabilityScope}
	var args []interface{}

	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)))
	}
	if filter.ActiveOn != "" {
		args = append(args, filter.ActiveOn)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d AND end_date >= $%d", len(args), len(args)))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")
	page := Paginate(filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder, availabilitySortFields, "created_at")

	listQuery := fmt.Sprintf("SELECT %s FROM availability_windows %s %s", availabilityColumns, where, page.Clause())
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list availability windows: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM availability_windows %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count availability windows: %w", err)
	}
	return windows, total, nil
}

// Create inserts a window.
func (r *AvailabilityRepository) Create(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error {
	if window == nil {
		return fmt.Errorf("availability window payload is nil")
	}
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now
	window.Active = true

	const query = `INSERT INTO availability_windows (id, resource_id, day_of_week, start_time, end_time, start_date, end_date, active, created_at, updated_at)
VALUES (:id, :resource_id, :day_of_week, :start_time, :end_time, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, window); err != nil {
		return fmt.Errorf("insert availability window: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an active window.
func (r *AvailabilityRepository) Update(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error {
	if window == nil {
		return fmt.Errorf("availability window payload is nil")
	}
	window.UpdatedAt = time.Now().UTC()

	const query = `UPDATE availability_windows SET resource_id = :resource_id, day_of_week = :day_of_week, start_time = :start_time,
end_time = :end_time, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id AND active = TRUE`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, window)
	if err != nil {
		return fmt.Errorf("update availability window: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability window rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft-deletes an active window.
func (r *AvailabilityRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	query := fmt.Sprintf("UPDATE availability_windows SET active = FALSE, updated_at = $2 WHERE id = $1 AND %s", activeAvailabilityScope)
	result, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate availability window: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability window rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateByResource soft-deletes every active window of a resource and returns how many changed.
func (r *AvailabilityRepository) DeactivateByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) (int64, error) {
	query := fmt.Sprintf("UPDATE availability_windows SET active = FALSE, updated_at = $2 WHERE resource_id = $1 AND %s", activeAvailabilityScope)
	result, err := r.exec(exec).ExecContext(ctx, query, resourceID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate availability windows by resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("availability window rows affected: %w", err)
	}
	return affected, nil
}
