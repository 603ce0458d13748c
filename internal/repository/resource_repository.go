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
	resourceColumns     = "id, owner_id, name, description, duration_minutes, price, link, active, created_at, updated_at"
	activeResourceScope = "active = TRUE"
)

var resourceSortFields = map[string]bool{
	"name":       true,
	"price":      true,
	"created_at": true,
	"updated_at": true,
}

// ResourceRepository persists bookable resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a resource, assigning id and public link when absent.
func (r *ResourceRepository) Create(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error {
	if resource == nil {
		return fmt.Errorf("resource payload is nil")
	}
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.Link == "" {
		resource.Link = uuid.NewString()
	}
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now
	resource.Active = true

	const query = `INSERT INTO resources (id, owner_id, name, description, duration_minutes, price, link, active, created_at, updated_at)
VALUES (:id, :owner_id, :name, :description, :duration_minutes, :price, :link, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, resource); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// FindActiveByID returns an active resource or sql.ErrNoRows.
func (r *ResourceRepository) FindActiveByID(ctx context.Context, id string) (*models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources WHERE id = $1 AND %s", resourceColumns, activeResourceScope)
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find resource: %w", err)
	}
	return &resource, nil
}

// FindActiveByLink resolves a resource by its public booking link.
func (r *ResourceRepository) FindActiveByLink(ctx context.Context, link string) (*models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources WHERE link = $1 AND %s", resourceColumns, activeResourceScope)
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, link); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find resource by link: %w", err)
	}
	return &resource, nil
}

// LockActive loads an active resource and holds its row lock until the
// transaction ends. Writers touching the same resource serialize here.
func (r *ResourceRepository) LockActive(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Resource, error) {
	query := fmt.Sprintf("SELECT %s FROM resources WHERE id = $1 AND %s FOR UPDATE", resourceColumns, activeResourceScope)
	var resource models.Resource
	if err := sqlx.GetContext(ctx, r.exec(exec), &resource, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock resource: %w", err)
	}
	return &resource, nil
}

// LockActiveIDs locks the active resources among ids, in id order, and
// returns the set that exists.
func (r *ResourceRepository) LockActiveIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query := fmt.Sprintf("SELECT id FROM resources WHERE id = ANY($1) AND %s ORDER BY id FOR UPDATE", activeResourceScope)
	var rows []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock active resources: %w", err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// List returns active resources matching the filter with the total count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	conditions := []string{activeResourceScope}
	var args []interface{}

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")
	page := Paginate(filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder, resourceSortFields, "created_at")

	listQuery := fmt.Sprintf("SELECT %s FROM resources %s %s", resourceColumns, where, page.Clause())
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM resources %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}
	return resources, total, nil
}

// Deactivate soft-deletes an active resource. A missing or already inactive
// resource yields sql.ErrNoRows.
func (r *ResourceRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	query := fmt.Sprintf("UPDATE resources SET active = FALSE, updated_at = $2 WHERE id = $1 AND %s", activeResourceScope)
	result, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resource rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
