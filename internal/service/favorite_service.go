package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type favoriteRepository interface {
	LockByUserAndResource(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) (*models.Favorite, error)
	Create(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error
	Reactivate(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error
	ListActiveByUser(ctx context.Context, filter models.FavoriteFilter) ([]models.FavoriteResource, int, error)
	Deactivate(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) error
}

type favoriteResourceReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.Resource, error)
}

// FavoriteService manages the resources a user has marked as favorites.
type FavoriteService struct {
	favorites favoriteRepository
	users     ownerReader
	resources favoriteResourceReader
	tx        *txRunner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFavoriteService constructs the service.
func NewFavoriteService(
	favorites favoriteRepository,
	users ownerReader,
	resources favoriteResourceReader,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *FavoriteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoriteService{
		favorites: favorites,
		users:     users,
		resources: resources,
		tx:        newTxRunner(tx, cfg.Tx, cfg.Metrics, logger),
		validator: validate,
		logger:    logger,
	}
}

// List returns a user's active favorites joined with their resources.
// A user without favorites yields NOT_FOUND.
func (s *FavoriteService) List(ctx context.Context, filter models.FavoriteFilter) ([]models.FavoriteResource, *models.Pagination, error) {
	if _, err := s.users.FindActiveByID(ctx, filter.UserID); err != nil {
		return nil, nil, notFoundOr(err, "user not found", "failed to load user")
	}
	items, total, err := s.favorites.ListActiveByUser(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list favorites")
	}
	if total == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "favorites not found")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Upsert favorites a resource, reviving a previously removed favorite
// instead of inserting a second row for the same pair.
func (s *FavoriteService) Upsert(ctx context.Context, req dto.FavoriteRequest) (*dto.FavoriteResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	if _, err := s.users.FindActiveByID(ctx, req.UserID); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	if _, err := s.resources.FindActiveByID(ctx, req.ResourceID); err != nil {
		return nil, notFoundOr(err, "resource not found", "failed to load resource")
	}

	result := &dto.FavoriteResult{}
	err := s.tx.run(ctx, "favorite.upsert", func(tx *sqlx.Tx) error {
		*result = dto.FavoriteResult{}
		existing, err := s.favorites.LockByUserAndResource(ctx, tx, req.UserID, req.ResourceID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			favorite := &models.Favorite{UserID: req.UserID, ResourceID: req.ResourceID}
			if err := s.favorites.Create(ctx, tx, favorite); err != nil {
				return err
			}
			result.Favorite = favorite
			result.Created = true
			return nil
		case err != nil:
			return err
		}
		result.Favorite = existing
		if existing.Active {
			return nil
		}
		if err := s.favorites.Reactivate(ctx, tx, existing); err != nil {
			return err
		}
		result.Reactivated = true
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to save favorite")
	}

	s.logger.Debug("favorite saved",
		zap.String("user_id", req.UserID),
		zap.String("resource_id", req.ResourceID),
		zap.Bool("created", result.Created),
		zap.Bool("reactivated", result.Reactivated),
	)
	return result, nil
}

// Remove soft-deletes an active favorite.
func (s *FavoriteService) Remove(ctx context.Context, userID, resourceID string) error {
	if err := s.favorites.Deactivate(ctx, nil, userID, resourceID); err != nil {
		return notFoundOr(err, "favorite not found", "failed to remove favorite")
	}
	return nil
}
