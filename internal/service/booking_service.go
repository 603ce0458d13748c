package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type bookingRepository interface {
	FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	ListActiveByResourceAndDate(ctx context.Context, exec sqlx.ExtContext, resourceID string, date scheduling.Date) ([]models.Booking, error)
	ListActiveByResource(ctx context.Context, resourceID string) ([]models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type bookingNotifier interface {
	Notify(ctx context.Context, intent NotificationIntent)
}

type cancellationLog interface {
	Record(ctx context.Context, exec sqlx.ExtContext, c *models.BookingCancellation) error
	ListByBooking(ctx context.Context, bookingID string) ([]models.BookingCancellation, error)
}

// BookingService manages concrete bookings and their status lifecycle.
type BookingService struct {
	bookings  bookingRepository
	resources resourceLocker
	tx        *txRunner
	notifier  bookingNotifier
	cancels   cancellationLog
	metrics   *MetricsService
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs the service.
func NewBookingService(
	bookings bookingRepository,
	resources resourceLocker,
	tx txProvider,
	notifier bookingNotifier,
	cancels cancellationLog,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &BookingService{
		bookings:  bookings,
		resources: resources,
		tx:        newTxRunner(tx, cfg.Tx, cfg.Metrics, logger),
		notifier:  notifier,
		cancels:   cancels,
		metrics:   cfg.Metrics,
		loc:       cfg.Location,
		validator: registerSchedulingValidations(validate),
		logger:    logger,
	}
}

// Location returns the zone used to render booking timestamps.
func (s *BookingService) Location() *time.Location {
	return s.loc
}

// List returns paginated active bookings.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	filter.IncludeInactive = false
	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListBySubject returns the booking history of a subject, including removed bookings.
func (s *BookingService) ListBySubject(ctx context.Context, subjectID string, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	filter.SubjectID = subjectID
	filter.IncludeInactive = true
	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByResource returns the active bookings of an active resource.
func (s *BookingService) ListByResource(ctx context.Context, resourceID string) ([]models.Booking, error) {
	if _, err := s.resources.FindActiveByID(ctx, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	bookings, err := s.bookings.ListActiveByResource(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// Get returns one active booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindActiveByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// Create reserves a slot. A booking created as Confirmed notifies the resource owner.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if req.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id is required")
	}

	booking := &models.Booking{
		ResourceID: req.ResourceID,
		SubjectID:  req.SubjectID,
		Status:     models.BookingStatusAvailable,
		Notes:      req.Notes,
	}
	if req.Status != "" {
		booking.Status = models.BookingStatus(req.Status)
	}
	var err error
	if booking.Date, err = scheduling.ParseDate(req.Date); err != nil {
		return nil, validationError(err)
	}
	if booking.StartTime, err = scheduling.ParseTimeOfDay(req.StartTime); err != nil {
		return nil, validationError(err)
	}
	if booking.EndTime, err = scheduling.ParseTimeOfDay(req.EndTime); err != nil {
		return nil, validationError(err)
	}
	if err := checkBookingTimes(*booking); err != nil {
		return nil, err
	}

	err = s.tx.run(ctx, "booking.create", func(tx *sqlx.Tx) error {
		if _, err := s.resources.LockActive(ctx, tx, booking.ResourceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
			}
			return err
		}
		if err := s.ensureNoOverlap(ctx, tx, *booking); err != nil {
			return err
		}
		return s.bookings.Create(ctx, tx, booking)
	})
	if err != nil {
		return nil, storeError(err, "failed to create booking")
	}

	if booking.Status == models.BookingStatusConfirmed {
		s.notify(ctx, TemplateBookingConfirmed, *booking)
	}
	return booking, nil
}

// Update patches a booking, enforcing the status state machine. CancelledBy
// decides who hears about a cancellation; when empty the owner is notified.
// A transition to Cancelled is appended to the cancellation log in the same
// transaction.
func (s *BookingService) Update(ctx context.Context, id string, req dto.UpdateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	var updated *models.Booking
	var previous models.BookingStatus
	err := s.tx.run(ctx, "booking.update", func(tx *sqlx.Tx) error {
		current, err := s.bookings.FindActiveByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
			}
			return err
		}
		previous = current.Status

		next, err := applyBookingPatch(*current, req)
		if err != nil {
			return err
		}
		if _, err := s.resources.LockActive(ctx, tx, next.ResourceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
			}
			return err
		}
		if err := s.ensureNoOverlap(ctx, tx, next); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, tx, &next); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
			}
			return err
		}
		if previous != next.Status && next.Status == models.BookingStatusCancelled && s.cancels != nil {
			record := &models.BookingCancellation{
				BookingID:      next.ID,
				CancelledBy:    cancelActor(req.CancelledBy),
				PreviousStatus: previous,
			}
			if err := s.cancels.Record(ctx, tx, record); err != nil {
				return err
			}
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to update booking")
	}

	if previous != updated.Status {
		s.metrics.RecordBookingTransition(string(previous), string(updated.Status))
		s.logger.Info("booking status changed",
			zap.String("id", updated.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(updated.Status)),
		)
		switch {
		case previous == models.BookingStatusAvailable && updated.Status == models.BookingStatusConfirmed:
			s.notify(ctx, TemplateBookingConfirmed, *updated)
		case updated.Status == models.BookingStatusCancelled:
			template := TemplateBookingCancelledBySubject
			if cancelActor(req.CancelledBy) == models.CancelActorOwner {
				template = TemplateBookingCancelledByOwner
			}
			s.notify(ctx, template, *updated)
		}
	}
	return updated, nil
}

// Cancellations returns the cancellation log of an active booking.
func (s *BookingService) Cancellations(ctx context.Context, id string) ([]models.BookingCancellation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.cancels == nil {
		return []models.BookingCancellation{}, nil
	}
	records, err := s.cancels.ListByBooking(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cancellations")
	}
	if records == nil {
		records = []models.BookingCancellation{}
	}
	return records, nil
}

// Delete soft-deletes an active booking. Deleting twice yields NOT_FOUND.
func (s *BookingService) Delete(ctx context.Context, id string) error {
	err := s.tx.run(ctx, "booking.delete", func(tx *sqlx.Tx) error {
		if err := s.bookings.Deactivate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return storeError(err, "failed to delete booking")
	}
	return nil
}

func (s *BookingService) ensureNoOverlap(ctx context.Context, tx sqlx.ExtContext, candidate models.Booking) error {
	existing, err := s.bookings.ListActiveByResourceAndDate(ctx, tx, candidate.ResourceID, candidate.Date)
	if err != nil {
		return err
	}
	slot := candidate.Slot()
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if scheduling.BookingsOverlap(slot, other.Slot()) {
			return appErrors.Clone(appErrors.ErrConflict, "a booking already exists for this resource in that time slot").
				WithDetails(models.ConflictDetail{Kind: "booking", ConflictWith: other.ID})
		}
	}
	return nil
}

func cancelActor(raw string) models.CancelActor {
	if models.CancelActor(raw) == models.CancelActorOwner {
		return models.CancelActorOwner
	}
	return models.CancelActorSubject
}

func (s *BookingService) notify(ctx context.Context, template NotificationTemplate, booking models.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, NotificationIntent{Template: template, Booking: booking})
}

func applyBookingPatch(current models.Booking, req dto.UpdateBookingRequest) (models.Booking, error) {
	next := current
	if req.ResourceID != nil {
		next.ResourceID = *req.ResourceID
	}
	if req.Date != nil {
		parsed, err := scheduling.ParseDate(*req.Date)
		if err != nil {
			return current, validationError(err)
		}
		next.Date = parsed
	}
	if req.StartTime != nil {
		parsed, err := scheduling.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return current, validationError(err)
		}
		next.StartTime = parsed
	}
	if req.EndTime != nil {
		parsed, err := scheduling.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return current, validationError(err)
		}
		next.EndTime = parsed
	}
	if req.Notes != nil {
		next.Notes = req.Notes
	}
	if err := checkBookingTimes(next); err != nil {
		return current, err
	}
	if req.Status != nil {
		status := models.BookingStatus(*req.Status)
		if !status.Valid() {
			return current, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown booking status %q", *req.Status))
		}
		if !current.Status.CanTransitionTo(status) {
			return current, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("booking cannot move from %s to %s", current.Status, status))
		}
		next.Status = status
	}
	return next, nil
}

func checkBookingTimes(b models.Booking) error {
	if b.StartTime.Seconds() >= b.EndTime.Seconds() {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}
