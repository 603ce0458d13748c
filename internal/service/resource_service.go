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

type resourceRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error
	FindActiveByID(ctx context.Context, id string) (*models.Resource, error)
	FindActiveByLink(ctx context.Context, link string) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	LockActive(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Resource, error)
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type resourceCascade interface {
	DeactivateByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) (int64, error)
}

type ownerReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
}

// ResourceService manages bookable resources and their removal cascade.
type ResourceService struct {
	resources resourceRepository
	bookings  resourceCascade
	windows   resourceCascade
	owners    ownerReader
	tx        *txRunner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs the service.
func NewResourceService(
	resources resourceRepository,
	bookings resourceCascade,
	windows resourceCascade,
	owners ownerReader,
	tx txProvider,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *ResourceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		resources: resources,
		bookings:  bookings,
		windows:   windows,
		owners:    owners,
		tx:        newTxRunner(tx, cfg.Tx, cfg.Metrics, logger),
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns paginated active resources.
func (s *ResourceService) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	items, total, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// FindActive returns an active resource or NOT_FOUND.
func (s *ResourceService) FindActive(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.resources.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return resource, nil
}

// FindByLink resolves a resource from its public booking link.
func (s *ResourceService) FindByLink(ctx context.Context, link string) (*models.Resource, error) {
	resource, err := s.resources.FindActiveByLink(ctx, link)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return resource, nil
}

// Create registers a resource for an active owner.
func (s *ResourceService) Create(ctx context.Context, req dto.CreateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if req.OwnerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner_id is required")
	}
	if _, err := s.owners.FindActiveByID(ctx, req.OwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "owner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load owner")
	}

	resource := &models.Resource{
		OwnerID:         req.OwnerID,
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
	}
	if err := s.resources.Create(ctx, nil, resource); err != nil {
		return nil, storeError(err, "failed to create resource")
	}
	return resource, nil
}

// Deactivate removes a resource and, in the same transaction, soft-deletes
// its active bookings and windows. The counts only include rows that changed.
func (s *ResourceService) Deactivate(ctx context.Context, id string) (*models.ResourceDeactivation, error) {
	var summary models.ResourceDeactivation
	err := s.tx.run(ctx, "resource.deactivate", func(tx *sqlx.Tx) error {
		summary = models.ResourceDeactivation{ResourceID: id}
		if _, err := s.resources.LockActive(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
			}
			return err
		}
		bookings, err := s.bookings.DeactivateByResource(ctx, tx, id)
		if err != nil {
			return err
		}
		windows, err := s.windows.DeactivateByResource(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.resources.Deactivate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
			}
			return err
		}
		summary.BookingsDeactivated = bookings
		summary.WindowsDeactivated = windows
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to deactivate resource")
	}

	s.cache.InvalidateWindows(ctx, id)
	s.logger.Info("resource deactivated",
		zap.String("resource_id", id),
		zap.Int64("bookings_deactivated", summary.BookingsDeactivated),
		zap.Int64("windows_deactivated", summary.WindowsDeactivated),
	)
	return &summary, nil
}
