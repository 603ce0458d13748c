package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/repository"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type availabilityRepository interface {
	FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AvailabilityWindow, error)
	FindActiveByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.AvailabilityWindow, error)
	ListActiveByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) ([]models.AvailabilityWindow, error)
	ListActiveByResourceAndDay(ctx context.Context, exec sqlx.ExtContext, resourceID string, dayOfWeek int) ([]models.AvailabilityWindow, error)
	ListActiveByResources(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string) ([]models.AvailabilityWindow, error)
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilityWindow, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error
	Update(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type resourceLocker interface {
	FindActiveByID(ctx context.Context, id string) (*models.Resource, error)
	LockActive(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Resource, error)
	LockActiveIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]bool, error)
}

// SchedulingConfig carries the time and transaction settings shared by scheduling services.
type SchedulingConfig struct {
	Location      *time.Location
	Clock         scheduling.Clock
	Tx            TxConfig
	CacheTTL      time.Duration
	BatchMaxItems int
	Metrics       *MetricsService
}

func (c SchedulingConfig) withDefaults() SchedulingConfig {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Clock == nil {
		c.Clock = scheduling.SystemClock{}
	}
	if c.BatchMaxItems <= 0 {
		c.BatchMaxItems = 500
	}
	return c
}

// AvailabilityService manages weekly availability windows.
type AvailabilityService struct {
	windows   availabilityRepository
	resources resourceLocker
	tx        *txRunner
	cache     *CacheService
	clock     scheduling.Clock
	loc       *time.Location
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(
	windows availabilityRepository,
	resources resourceLocker,
	tx txProvider,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &AvailabilityService{
		windows:   windows,
		resources: resources,
		tx:        newTxRunner(tx, cfg.Tx, cfg.Metrics, logger),
		cache:     cache,
		clock:     cfg.Clock,
		loc:       cfg.Location,
		cacheTTL:  cfg.CacheTTL,
		validator: registerSchedulingValidations(validate),
		logger:    logger,
	}
}

// Location returns the zone in which windows are interpreted.
func (s *AvailabilityService) Location() *time.Location {
	return s.loc
}

// List returns paginated active windows.
func (s *AvailabilityService) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilityWindow, *models.Pagination, error) {
	items, total, err := s.windows.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one active window.
func (s *AvailabilityService) Get(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	window, err := s.windows.FindActiveByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability window")
	}
	return window, nil
}

// ListByResource returns the active windows of an active resource, served
// from cache when possible. The boolean reports a cache hit.
func (s *AvailabilityService) ListByResource(ctx context.Context, resourceID string) ([]models.AvailabilityWindow, bool, error) {
	if _, err := s.resources.FindActiveByID(ctx, resourceID); err != nil {
		return nil, false, notFoundOr(err, "resource not found", "failed to load resource")
	}

	key := windowsKey(resourceID)
	var cached []models.AvailabilityWindow
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	windows, err := s.windows.ListActiveByResource(ctx, nil, resourceID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}
	if windows == nil {
		windows = []models.AvailabilityWindow{}
	}
	s.cache.Set(ctx, key, windows, s.cacheTTL)
	return windows, false, nil
}

// Create validates, normalises and stores a new window.
func (s *AvailabilityService) Create(ctx context.Context, req dto.CreateAvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	window, err := windowFromRequest(req)
	if err != nil {
		return nil, err
	}

	err = s.tx.run(ctx, "availability.create", func(tx *sqlx.Tx) error {
		if err := s.lockResource(ctx, tx, window.ResourceID); err != nil {
			return err
		}
		if err := s.normalize(window); err != nil {
			return err
		}
		if err := s.ensureNoOverlap(ctx, tx, *window); err != nil {
			return err
		}
		return s.windows.Create(ctx, tx, window)
	})
	if err != nil {
		return nil, storeError(err, "failed to create availability window")
	}

	s.invalidate(ctx, window.ResourceID)
	s.logger.Info("availability window created",
		zap.String("id", window.ID),
		zap.String("resource_id", window.ResourceID),
		zap.String("start_date", window.StartDate.String()),
	)
	return window, nil
}

// Update patches an active window, re-normalising and re-checking overlap.
func (s *AvailabilityService) Update(ctx context.Context, id string, req dto.UpdateAvailabilityRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	var updated *models.AvailabilityWindow
	var previousResource string
	err := s.tx.run(ctx, "availability.update", func(tx *sqlx.Tx) error {
		current, err := s.windows.FindActiveByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
			}
			return err
		}
		previousResource = current.ResourceID

		next, renormalize, err := applyWindowPatch(*current, req)
		if err != nil {
			return err
		}
		if err := s.lockResource(ctx, tx, next.ResourceID); err != nil {
			return err
		}
		if renormalize {
			if err := s.normalize(&next); err != nil {
				return err
			}
		}
		if err := s.ensureNoOverlap(ctx, tx, next); err != nil {
			return err
		}
		if err := s.windows.Update(ctx, tx, &next); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
			}
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to update availability window")
	}

	s.invalidate(ctx, previousResource, updated.ResourceID)
	return updated, nil
}

// Delete soft-deletes an active window. Deleting twice yields NOT_FOUND.
func (s *AvailabilityService) Delete(ctx context.Context, id string) error {
	var resourceID string
	err := s.tx.run(ctx, "availability.delete", func(tx *sqlx.Tx) error {
		window, err := s.windows.FindActiveByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
			}
			return err
		}
		resourceID = window.ResourceID
		if err := s.windows.Deactivate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return storeError(err, "failed to delete availability window")
	}
	s.invalidate(ctx, resourceID)
	return nil
}

func (s *AvailabilityService) lockResource(ctx context.Context, tx sqlx.ExtContext, resourceID string) error {
	if _, err := s.resources.LockActive(ctx, tx, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return err
	}
	return nil
}

func (s *AvailabilityService) normalize(window *models.AvailabilityWindow) error {
	start, ok := scheduling.NormalizeStart(window.StartDate, window.EndDate, window.DayOfWeek, window.StartTime, s.clock.Now(), s.loc)
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "no valid occurrence in range for the selected day and time")
	}
	window.StartDate = start
	return nil
}

func (s *AvailabilityService) ensureNoOverlap(ctx context.Context, tx sqlx.ExtContext, candidate models.AvailabilityWindow) error {
	existing, err := s.windows.ListActiveByResourceAndDay(ctx, tx, candidate.ResourceID, candidate.DayOfWeek)
	if err != nil {
		return err
	}
	if hit := firstWindowOverlap(candidate, existing); hit != nil {
		return appErrors.Clone(appErrors.ErrConflict, "availability window overlaps an existing window").
			WithDetails(models.ConflictDetail{Kind: "availability_window", ConflictWith: hit.ID})
	}
	return nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, resourceIDs ...string) {
	s.cache.InvalidateWindows(ctx, resourceIDs...)
}

// firstWindowOverlap returns the first stored window that collides with
// candidate, ignoring the candidate's own record.
func firstWindowOverlap(candidate models.AvailabilityWindow, existing []models.AvailabilityWindow) *models.AvailabilityWindow {
	slot := candidate.Slot()
	for i := range existing {
		if existing[i].ID == candidate.ID && candidate.ID != "" {
			continue
		}
		if scheduling.WindowsOverlap(slot, existing[i].Slot()) {
			return &existing[i]
		}
	}
	return nil
}

func windowFromRequest(req dto.CreateAvailabilityRequest) (*models.AvailabilityWindow, error) {
	window := &models.AvailabilityWindow{ResourceID: req.ResourceID}
	if req.DayOfWeek != nil {
		window.DayOfWeek = *req.DayOfWeek
	}
	var err error
	if window.StartTime, err = scheduling.ParseTimeOfDay(req.StartTime); err != nil {
		return nil, validationError(err)
	}
	if window.EndTime, err = scheduling.ParseTimeOfDay(req.EndTime); err != nil {
		return nil, validationError(err)
	}
	if window.StartDate, err = scheduling.ParseDate(req.StartDate); err != nil {
		return nil, validationError(err)
	}
	if window.EndDate, err = scheduling.ParseDate(req.EndDate); err != nil {
		return nil, validationError(err)
	}
	if err := checkWindowRanges(*window); err != nil {
		return nil, err
	}
	return window, nil
}

// applyWindowPatch merges req into current. The boolean reports whether the
// start date has to be normalised again.
func applyWindowPatch(current models.AvailabilityWindow, req dto.UpdateAvailabilityRequest) (models.AvailabilityWindow, bool, error) {
	next := current
	renormalize := false
	if req.ResourceID != nil {
		next.ResourceID = *req.ResourceID
	}
	if req.DayOfWeek != nil && *req.DayOfWeek != current.DayOfWeek {
		next.DayOfWeek = *req.DayOfWeek
		renormalize = true
	}
	if req.StartTime != nil {
		parsed, err := scheduling.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return current, false, validationError(err)
		}
		if parsed != current.StartTime {
			renormalize = true
		}
		next.StartTime = parsed
	}
	if req.EndTime != nil {
		parsed, err := scheduling.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return current, false, validationError(err)
		}
		next.EndTime = parsed
	}
	if req.StartDate != nil {
		parsed, err := scheduling.ParseDate(*req.StartDate)
		if err != nil {
			return current, false, validationError(err)
		}
		if parsed != current.StartDate {
			renormalize = true
		}
		next.StartDate = parsed
	}
	if req.EndDate != nil {
		parsed, err := scheduling.ParseDate(*req.EndDate)
		if err != nil {
			return current, false, validationError(err)
		}
		next.EndDate = parsed
	}
	if err := checkWindowRanges(next); err != nil {
		return current, false, err
	}
	return next, renormalize, nil
}

func checkWindowRanges(w models.AvailabilityWindow) error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6")
	}
	if w.StartTime.Seconds() >= w.EndTime.Seconds() {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if w.StartDate > w.EndDate {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}
	return nil
}

func validationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	resolved := repository.Paginate(page, pageSize, "", "", nil, "")
	return &models.Pagination{Page: resolved.Page, PageSize: resolved.PageSize, TotalCount: total}
}
