package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

// Saturday 2025-03-01 12:00 UTC.
var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type windowRepoStub struct {
	items   map[string]models.AvailabilityWindow
	seq     int
	creates int
	updates int
}

func newWindowRepoStub(existing ...models.AvailabilityWindow) *windowRepoStub {
	stub := &windowRepoStub{items: map[string]models.AvailabilityWindow{}}
	for _, w := range existing {
		w.Active = true
		stub.items[w.ID] = w
	}
	return stub
}

func (s *windowRepoStub) active() []models.AvailabilityWindow {
	var out []models.AvailabilityWindow
	for _, w := range s.items {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *windowRepoStub) FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AvailabilityWindow, error) {
	w, ok := s.items[id]
	if !ok || !w.Active {
		return nil, sql.ErrNoRows
	}
	return &w, nil
}

func (s *windowRepoStub) FindActiveByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.AvailabilityWindow, error) {
	out := map[string]models.AvailabilityWindow{}
	for _, id := range ids {
		if w, ok := s.items[id]; ok && w.Active {
			out[id] = w
		}
	}
	return out, nil
}

func (s *windowRepoStub) ListActiveByResource(ctx context.Context, exec sqlx.ExtContext, resourceID string) ([]models.AvailabilityWindow, error) {
	var out []models.AvailabilityWindow
	for _, w := range s.active() {
		if w.ResourceID == resourceID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *windowRepoStub) ListActiveByResourceAndDay(ctx context.Context, exec sqlx.ExtContext, resourceID string, dayOfWeek int) ([]models.AvailabilityWindow, error) {
	var out []models.AvailabilityWindow
	for _, w := range s.active() {
		if w.ResourceID == resourceID && w.DayOfWeek == dayOfWeek {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *windowRepoStub) ListActiveByResources(ctx context.Context, exec sqlx.ExtContext, resourceIDs []string) ([]models.AvailabilityWindow, error) {
	wanted := map[string]bool{}
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	var out []models.AvailabilityWindow
	for _, w := range s.active() {
		if wanted[w.ResourceID] {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *windowRepoStub) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilityWindow, int, error) {
	items := s.active()
	return items, len(items), nil
}

func (s *windowRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error {
	s.seq++
	s.creates++
	window.ID = fmt.Sprintf("w-%d", s.seq)
	window.Active = true
	s.items[window.ID] = *window
	return nil
}

func (s *windowRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, window *models.AvailabilityWindow) error {
	if w, ok := s.items[window.ID]; !ok || !w.Active {
		return sql.ErrNoRows
	}
	s.updates++
	s.items[window.ID] = *window
	return nil
}

func (s *windowRepoStub) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	w, ok := s.items[id]
	if !ok || !w.Active {
		return sql.ErrNoRows
	}
	w.Active = false
	s.items[id] = w
	return nil
}

type resourceLockerStub struct {
	active map[string]bool
	locked []string
}

func newResourceLockerStub(ids ...string) *resourceLockerStub {
	stub := &resourceLockerStub{active: map[string]bool{}}
	for _, id := range ids {
		stub.active[id] = true
	}
	return stub
}

func (s *resourceLockerStub) FindActiveByID(ctx context.Context, id string) (*models.Resource, error) {
	if !s.active[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Resource{ID: id, OwnerID: "owner-1", Name: "Resource " + id, Active: true}, nil
}

func (s *resourceLockerStub) LockActive(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Resource, error) {
	s.locked = append(s.locked, id)
	return s.FindActiveByID(ctx, id)
}

func (s *resourceLockerStub) LockActiveIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		s.locked = append(s.locked, id)
		if s.active[id] {
			out[id] = true
		}
	}
	return out, nil
}

type memoryCacheRepo struct {
	values  map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func testSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{Location: time.UTC, Clock: scheduling.FixedClock{At: testNow}}
}

func windowRequest(resourceID string, day int, start, end, from, to string) dto.CreateAvailabilityRequest {
	return dto.CreateAvailabilityRequest{
		ResourceID: resourceID,
		DayOfWeek:  intPtr(day),
		StartTime:  start,
		EndTime:    end,
		StartDate:  from,
		EndDate:    to,
	}
}

func mondayWindow(id, start, end string) models.AvailabilityWindow {
	return models.AvailabilityWindow{
		ID:         id,
		ResourceID: "res-1",
		DayOfWeek:  1,
		StartTime:  scheduling.TimeOfDay(start),
		EndTime:    scheduling.TimeOfDay(end),
		StartDate:  "2025-03-03",
		EndDate:    "2025-03-31",
	}
}

func newAvailabilityServiceForTest(t *testing.T, windows *windowRepoStub, resources *resourceLockerStub, cache *CacheService) (*AvailabilityService, *txProviderMock) {
	t.Helper()
	provider, _ := newTxProviderMock(t)
	svc := NewAvailabilityService(windows, resources, provider, cache, nil, zap.NewNop(), testSchedulingConfig())
	return svc, provider.(*txProviderMock)
}

func TestAvailabilityCreateNormalizesStartDate(t *testing.T) {
	cases := []struct {
		name string
		day  int
		from string
		time string
		want scheduling.Date
	}{
		{"advances to weekday", 1, "2025-03-01", "10:00", "2025-03-03"},
		{"same day still ahead", 6, "2025-03-01", "15:00", "2025-03-01"},
		{"same day already started", 6, "2025-03-01", "09:00", "2025-03-08"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			windows := newWindowRepoStub()
			svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)
			tx.mock.ExpectBegin()
			tx.mock.ExpectCommit()

			end := scheduling.TimeOfDay(tc.time).Seconds()/3600 + 1
			created, err := svc.Create(context.Background(), windowRequest("res-1", tc.day, tc.time, fmt.Sprintf("%02d:00", end), tc.from, "2025-03-31"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, created.StartDate)
			assert.NotEmpty(t, created.ID)
			assert.NoError(t, tx.mock.ExpectationsWereMet())
		})
	}
}

func TestAvailabilityCreateWithoutOccurrenceConflicts(t *testing.T) {
	windows := newWindowRepoStub()
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)
	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()

	_, err := svc.Create(context.Background(), windowRequest("res-1", 6, "09:00", "10:00", "2025-03-01", "2025-03-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Zero(t, windows.creates)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityCreateOverlapReportsConflictingWindow(t *testing.T) {
	windows := newWindowRepoStub(mondayWindow("w-existing", "10:00:00", "12:00:00"))
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)
	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()

	_, err := svc.Create(context.Background(), windowRequest("res-1", 1, "11:00", "13:00", "2025-03-01", "2025-03-31"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, models.ConflictDetail{Kind: "availability_window", ConflictWith: "w-existing"}, appErr.Details)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityCreateAdjacentWindowsDoNotOverlap(t *testing.T) {
	windows := newWindowRepoStub(mondayWindow("w-existing", "10:00:00", "12:00:00"))
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)
	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()

	_, err := svc.Create(context.Background(), windowRequest("res-1", 1, "12:00", "13:00", "2025-03-01", "2025-03-31"))
	require.NoError(t, err)
	assert.Len(t, windows.active(), 2)
}

func TestAvailabilityCreateRejectsInvalidInput(t *testing.T) {
	svc, tx := newAvailabilityServiceForTest(t, newWindowRepoStub(), newResourceLockerStub("res-1"), nil)

	_, err := svc.Create(context.Background(), windowRequest("res-1", 1, "12:00", "11:00", "2025-03-01", "2025-03-31"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), windowRequest("res-1", 7, "10:00", "11:00", "2025-03-01", "2025-03-31"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), windowRequest("res-1", 1, "10:00", "11:00", "2025-03-31", "2025-03-01"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), windowRequest("res-1", 1, "10:00", "11:00", "03/01/2025", "2025-03-31"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityCreateUnknownResource(t *testing.T) {
	svc, tx := newAvailabilityServiceForTest(t, newWindowRepoStub(), newResourceLockerStub(), nil)
	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()

	_, err := svc.Create(context.Background(), windowRequest("res-missing", 1, "10:00", "11:00", "2025-03-01", "2025-03-31"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityUpdateRenormalizesAndIgnoresItself(t *testing.T) {
	windows := newWindowRepoStub(mondayWindow("w-1", "10:00:00", "12:00:00"))
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	end := "12:30"
	updated, err := svc.Update(context.Background(), "w-1", dto.UpdateAvailabilityRequest{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, scheduling.TimeOfDay("12:30:00"), updated.EndTime)
	assert.Equal(t, scheduling.Date("2025-03-03"), updated.StartDate)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	day := 3
	updated, err = svc.Update(context.Background(), "w-1", dto.UpdateAvailabilityRequest{DayOfWeek: &day})
	require.NoError(t, err)
	assert.Equal(t, scheduling.Date("2025-03-05"), updated.StartDate)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityUpdateOverlapAndMissing(t *testing.T) {
	windows := newWindowRepoStub(
		mondayWindow("w-1", "08:00:00", "09:00:00"),
		mondayWindow("w-2", "10:00:00", "12:00:00"),
	)
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	end := "10:30"
	_, err := svc.Update(context.Background(), "w-1", dto.UpdateAvailabilityRequest{EndTime: &end})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err = svc.Update(context.Background(), "w-missing", dto.UpdateAvailabilityRequest{EndTime: &end})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestAvailabilityDeleteTwiceIsNotFound(t *testing.T) {
	windows := newWindowRepoStub(mondayWindow("w-1", "10:00:00", "12:00:00"))
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	require.NoError(t, svc.Delete(context.Background(), "w-1"))

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	err := svc.Delete(context.Background(), "w-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, tx.mock.ExpectationsWereMet())

	_, err = svc.Get(context.Background(), "w-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAvailabilityListByResourceUsesCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	windows := newWindowRepoStub(mondayWindow("w-1", "10:00:00", "12:00:00"))
	svc, tx := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), cache)

	items, hit, err := svc.ListByResource(context.Background(), "res-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, hit)
	assert.Contains(t, repo.values, windowsCachePrefix+"res-1")

	// served from cache even though storage changed underneath
	windows.items["w-1"] = models.AvailabilityWindow{ID: "w-1", ResourceID: "res-1", Active: false}
	items, hit, err = svc.ListByResource(context.Background(), "res-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, items, 1)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	_, err = svc.Create(context.Background(), windowRequest("res-1", 2, "10:00", "11:00", "2025-03-01", "2025-03-31"))
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, windowsCachePrefix+"res-1")

	items, _, err = svc.ListByResource(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, items[0].DayOfWeek)

	_, _, err = svc.ListByResource(context.Background(), "res-missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAvailabilityListPagination(t *testing.T) {
	windows := newWindowRepoStub(mondayWindow("w-1", "10:00:00", "12:00:00"))
	svc, _ := newAvailabilityServiceForTest(t, windows, newResourceLockerStub("res-1"), nil)

	items, page, err := svc.List(context.Background(), models.AvailabilityFilter{Page: 0, PageSize: 0})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalCount)
	assert.Positive(t, page.PageSize)
}
