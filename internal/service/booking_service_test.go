package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type bookingRepoStub struct {
	items       map[string]models.Booking
	seq         int
	lastFilter  models.BookingFilter
	deactivated int64
}

func newBookingRepoStub(existing ...models.Booking) *bookingRepoStub {
	stub := &bookingRepoStub{items: map[string]models.Booking{}}
	for _, b := range existing {
		b.Active = true
		stub.items[b.ID] = b
	}
	return stub
}

func (s *bookingRepoStub) active() []models.Booking {
	var out []models.Booking
	for _, b := range s.items {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *bookingRepoStub) FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	b, ok := s.items[id]
	if !ok || !b.Active {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (s *bookingRepoStub) ListActiveByResourceAndDate(ctx context.Context, exec sqlx.ExtContext, resourceID string, date scheduling.Date) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range s.active() {
		if b.ResourceID == resourceID && b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *bookingRepoStub) ListActiveByResource(ctx context.Context, resourceID string) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range s.active() {
		if b.ResourceID == resourceID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *bookingRepoStub) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.lastFilter = filter
	var out []models.Booking
	for _, b := range s.items {
		if (b.Active || filter.IncludeInactive) && (filter.SubjectID == "" || b.SubjectID == filter.SubjectID) {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (s *bookingRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	s.seq++
	booking.ID = fmt.Sprintf("b-%d", s.seq)
	booking.Active = true
	s.items[booking.ID] = *booking
	return nil
}

func (s *bookingRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if b, ok := s.items[booking.ID]; !ok || !b.Active {
		return sql.ErrNoRows
	}
	s.items[booking.ID] = *booking
	return nil
}

func (s *bookingRepoStub) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	b, ok := s.items[id]
	if !ok || !b.Active {
		return sql.ErrNoRows
	}
	b.Active = false
	s.items[id] = b
	return nil
}

func (s *bookingRepoStub) DeactivateByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) (int64, error) {
	var n int64
	for id, b := range s.items {
		if b.Active && b.ResourceID == resourceID {
			b.Active = false
			s.items[id] = b
			n++
		}
	}
	s.deactivated += n
	return n, nil
}

type notifierRecorder struct {
	intents []NotificationIntent
}

func (r *notifierRecorder) Notify(ctx context.Context, intent NotificationIntent) {
	r.intents = append(r.intents, intent)
}

func (r *notifierRecorder) templates() []NotificationTemplate {
	out := make([]NotificationTemplate, 0, len(r.intents))
	for _, i := range r.intents {
		out = append(out, i.Template)
	}
	return out
}

type cancellationLogStub struct {
	records []models.BookingCancellation
}

func (s *cancellationLogStub) Record(ctx context.Context, exec sqlx.ExtContext, c *models.BookingCancellation) error {
	c.ID = fmt.Sprintf("c-%d", len(s.records)+1)
	s.records = append(s.records, *c)
	return nil
}

func (s *cancellationLogStub) ListByBooking(ctx context.Context, bookingID string) ([]models.BookingCancellation, error) {
	var out []models.BookingCancellation
	for _, c := range s.records {
		if c.BookingID == bookingID {
			out = append(out, c)
		}
	}
	return out, nil
}

func booking(id, start, end string, status models.BookingStatus) models.Booking {
	return models.Booking{
		ID:         id,
		ResourceID: "res-1",
		SubjectID:  "client-1",
		Date:       "2025-03-03",
		StartTime:  scheduling.TimeOfDay(start),
		EndTime:    scheduling.TimeOfDay(end),
		Status:     status,
	}
}

func newBookingServiceForTest(t *testing.T, repo *bookingRepoStub, cfg SchedulingConfig) (*BookingService, *txProviderMock, *notifierRecorder) {
	t.Helper()
	provider, _ := newTxProviderMock(t)
	notifier := &notifierRecorder{}
	svc := NewBookingService(repo, newResourceLockerStub("res-1"), provider, notifier, &cancellationLogStub{}, nil, zap.NewNop(), cfg)
	return svc, provider.(*txProviderMock), notifier
}

func bookingRequest(start, end, status string) dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		ResourceID: "res-1",
		SubjectID:  "client-1",
		Date:       "2025-03-03",
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	}
}

func TestBookingCreate(t *testing.T) {
	repo := newBookingRepoStub(booking("b-existing", "10:00:00", "11:00:00", models.BookingStatusConfirmed))
	svc, tx, notifier := newBookingServiceForTest(t, repo, testSchedulingConfig())

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	created, err := svc.Create(context.Background(), bookingRequest("11:00", "12:00", ""))
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAvailable, created.Status)
	assert.Empty(t, notifier.intents)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	created, err = svc.Create(context.Background(), bookingRequest("12:00", "13:00", "Confirmed"))
	require.NoError(t, err)
	assert.Equal(t, []NotificationTemplate{TemplateBookingConfirmed}, notifier.templates())
	assert.Equal(t, created.ID, notifier.intents[0].Booking.ID)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err = svc.Create(context.Background(), bookingRequest("09:30", "10:30", ""))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.ConflictDetail{Kind: "booking", ConflictWith: "b-existing"}, appErr.Details)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingCreateValidation(t *testing.T) {
	svc, tx, _ := newBookingServiceForTest(t, newBookingRepoStub(), testSchedulingConfig())

	req := bookingRequest("10:00", "11:00", "")
	req.SubjectID = ""
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), bookingRequest("11:00", "10:00", ""))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), bookingRequest("10:00", "11:00", "Pending"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingUpdateStateMachine(t *testing.T) {
	cfg := testSchedulingConfig()
	cfg.Metrics = NewMetricsService()
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable))
	svc, tx, notifier := newBookingServiceForTest(t, repo, cfg)
	status := func(s models.BookingStatus) *string { v := string(s); return &v }

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	updated, err := svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{Status: status(models.BookingStatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, updated.Status)
	assert.Equal(t, []NotificationTemplate{TemplateBookingConfirmed}, notifier.templates())
	assert.Equal(t, 1.0, testutil.ToFloat64(cfg.Metrics.bookingTransitions.WithLabelValues("Available", "Confirmed")))

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	updated, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{
		Status:      status(models.BookingStatusCancelled),
		CancelledBy: "owner",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, updated.Status)
	assert.Equal(t, TemplateBookingCancelledByOwner, notifier.intents[1].Template)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{Status: status(models.BookingStatusConfirmed)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, notifier.intents, 2)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingUpdateCancelDefaultsToOwnerRecipient(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusConfirmed))
	svc, tx, notifier := newBookingServiceForTest(t, repo, testSchedulingConfig())
	cancelled := string(models.BookingStatusCancelled)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	_, err := svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, []NotificationTemplate{TemplateBookingCancelledBySubject}, notifier.templates())
}

func TestBookingCancellationIsLoggedWithoutReopening(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusConfirmed))
	svc, tx, _ := newBookingServiceForTest(t, repo, testSchedulingConfig())
	log := svc.cancels.(*cancellationLogStub)
	cancelled := string(models.BookingStatusCancelled)
	ctx := context.Background()

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	updated, err := svc.Update(ctx, "b-1", dto.UpdateBookingRequest{Status: &cancelled, CancelledBy: "owner"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, updated.Status)
	assert.Equal(t, models.BookingStatusCancelled, repo.items["b-1"].Status)

	records, err := svc.Cancellations(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.CancelActorOwner, records[0].CancelledBy)
	assert.Equal(t, models.BookingStatusConfirmed, records[0].PreviousStatus)

	notes := "rescheduled by phone"
	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	_, err = svc.Update(ctx, "b-1", dto.UpdateBookingRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Len(t, log.records, 1)

	_, err = svc.Cancellations(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingCancellationDefaultsToSubjectActor(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable))
	svc, tx, _ := newBookingServiceForTest(t, repo, testSchedulingConfig())
	cancelled := string(models.BookingStatusCancelled)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	_, err := svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{Status: &cancelled})
	require.NoError(t, err)

	records, err := svc.Cancellations(context.Background(), "b-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.CancelActorSubject, records[0].CancelledBy)
	assert.Equal(t, models.BookingStatusAvailable, records[0].PreviousStatus)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingUpdateTimesIgnoresItself(t *testing.T) {
	repo := newBookingRepoStub(
		booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable),
		booking("b-2", "12:00:00", "13:00:00", models.BookingStatusAvailable),
	)
	svc, tx, notifier := newBookingServiceForTest(t, repo, testSchedulingConfig())
	end := "11:30"

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	updated, err := svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, scheduling.TimeOfDay("11:30:00"), updated.EndTime)
	assert.Empty(t, notifier.intents)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	late := "12:30"
	_, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{EndTime: &late})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingUpdateMovesResource(t *testing.T) {
	occupied := booking("b-2", "10:30:00", "11:30:00", models.BookingStatusConfirmed)
	occupied.ResourceID = "res-2"
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable), occupied)
	provider, _ := newTxProviderMock(t)
	tx := provider.(*txProviderMock)
	svc := NewBookingService(repo, newResourceLockerStub("res-1", "res-2", "res-3"), provider, &notifierRecorder{}, nil, nil, zap.NewNop(), testSchedulingConfig())

	var req dto.UpdateBookingRequest
	require.NoError(t, json.Unmarshal([]byte(`{"resource_id":"res-3"}`), &req))
	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	moved, err := svc.Update(context.Background(), "b-1", req)
	require.NoError(t, err)
	assert.Equal(t, "res-3", moved.ResourceID)
	assert.Equal(t, "res-3", repo.items["b-1"].ResourceID)

	target := "res-2"
	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{ResourceID: &target})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.ConflictDetail{Kind: "booking", ConflictWith: "b-2"}, appErr.Details)
	assert.Equal(t, "res-3", repo.items["b-1"].ResourceID)

	missing := "res-gone"
	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{ResourceID: &missing})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	empty := ""
	_, err = svc.Update(context.Background(), "b-1", dto.UpdateBookingRequest{ResourceID: &empty})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingDeleteTwiceIsNotFound(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable))
	svc, tx, _ := newBookingServiceForTest(t, repo, testSchedulingConfig())

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	require.NoError(t, svc.Delete(context.Background(), "b-1"))

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	assert.ErrorIs(t, svc.Delete(context.Background(), "b-1"), appErrors.ErrNotFound)

	_, err := svc.Get(context.Background(), "b-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestBookingListings(t *testing.T) {
	removed := booking("b-2", "12:00:00", "13:00:00", models.BookingStatusCancelled)
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusAvailable), removed)
	gone := repo.items["b-2"]
	gone.Active = false
	repo.items["b-2"] = gone
	svc, _, _ := newBookingServiceForTest(t, repo, testSchedulingConfig())

	items, _, err := svc.List(context.Background(), models.BookingFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.False(t, repo.lastFilter.IncludeInactive)

	history, page, err := svc.ListBySubject(context.Background(), "client-1", models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 2, page.TotalCount)

	byResource, err := svc.ListByResource(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Len(t, byResource, 1)

	_, err = svc.ListByResource(context.Background(), "res-missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
