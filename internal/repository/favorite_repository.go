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
)

const favoriteColumns = "id, user_id, resource_id, active, created_at, updated_at"

var favoriteSortFields = map[string]bool{
	"id":          true,
	"resource_id": true,
	"created_at":  true,
}

// favoriteResourceColumns selects a favorite and its resource for FavoriteResource scanning.
var favoriteResourceColumns = func() string {
	cols := []string{"f.id", "f.user_id", "f.resource_id", "f.active", "f.created_at", "f.updated_at"}
	for _, c := range strings.Split(resourceColumns, ", ") {
		cols = append(cols, fmt.Sprintf(`r.%s AS "resource.%s"`, c, c))
	}
	return strings.Join(cols, ", ")
}()

// FavoriteRepository persists user favorites.
type FavoriteRepository struct {
	db *sqlx.DB
}

// NewFavoriteRepository constructs the repository.
func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockByUserAndResource loads the favorite row for the pair whatever its
// state, holding a row lock until the transaction ends.
func (r *FavoriteRepository) LockByUserAndResource(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) (*models.Favorite, error) {
	query := fmt.Sprintf("SELECT %s FROM favorites WHERE user_id = $1 AND resource_id = $2 FOR UPDATE", favoriteColumns)
	var favorite models.Favorite
	if err := sqlx.GetContext(ctx, r.exec(exec), &favorite, query, userID, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock favorite: %w", err)
	}
	return &favorite, nil
}

// Create inserts an active favorite.
func (r *FavoriteRepository) Create(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error {
	if favorite == nil {
		return fmt.Errorf("favorite payload is nil")
	}
	if favorite.ID == "" {
		favorite.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	favorite.CreatedAt = now
	favorite.UpdatedAt = now
	favorite.Active = true

	const query = `INSERT INTO favorites (id, user_id, resource_id, active, created_at, updated_at)
VALUES (:id, :user_id, :resource_id, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, favorite); err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// Reactivate flips a removed favorite back on.
func (r *FavoriteRepository) Reactivate(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error {
	favorite.Active = true
	favorite.UpdatedAt = time.Now().UTC()
	const query = "UPDATE favorites SET active = TRUE, updated_at = $2 WHERE id = $1"
	if _, err := r.exec(exec).ExecContext(ctx, query, favorite.ID, favorite.UpdatedAt); err != nil {
		return fmt.Errorf("reactivate favorite: %w", err)
	}
	return nil
}

// ListActiveByUser returns a user's active favorites whose resource is still active.
func (r *FavoriteRepository) ListActiveByUser(ctx context.Context, filter models.FavoriteFilter) ([]models.FavoriteResource, int, error) {
	const from = "FROM favorites f JOIN resources r ON r.id = f.resource_id AND r.active = TRUE WHERE f.user_id = $1 AND f.active = TRUE"
	page := Paginate(filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder, favoriteSortFields, "created_at")
	page.OrderBy = "f." + page.OrderBy

	var items []models.FavoriteResource
	listQuery := fmt.Sprintf("SELECT %s %s %s", favoriteResourceColumns, from, page.Clause())
	if err := r.db.SelectContext(ctx, &items, listQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list favorites: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count favorites: %w", err)
	}
	return items, total, nil
}

// Deactivate soft-deletes the active favorite for the pair, or returns sql.ErrNoRows.
func (r *FavoriteRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) error {
	const query = "UPDATE favorites SET active = FALSE, updated_at = $3 WHERE user_id = $1 AND resource_id = $2 AND active = TRUE"
	result, err := r.exec(exec).ExecContext(ctx, query, userID, resourceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("favorite rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
