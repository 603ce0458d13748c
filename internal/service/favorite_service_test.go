package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type favoriteRepoStub struct {
	rows      map[string]*models.Favorite
	createErr error
	nextID    int
}

func newFavoriteRepoStub() *favoriteRepoStub {
	return &favoriteRepoStub{rows: map[string]*models.Favorite{}}
}

func favoriteKey(userID, resourceID string) string { return userID + "/" + resourceID }

func (s *favoriteRepoStub) LockByUserAndResource(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) (*models.Favorite, error) {
	if f, ok := s.rows[favoriteKey(userID, resourceID)]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *favoriteRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	favorite.ID = fmt.Sprintf("fav-%d", s.nextID)
	favorite.Active = true
	copied := *favorite
	s.rows[favoriteKey(favorite.UserID, favorite.ResourceID)] = &copied
	return nil
}

func (s *favoriteRepoStub) Reactivate(ctx context.Context, exec sqlx.ExtContext, favorite *models.Favorite) error {
	favorite.Active = true
	s.rows[favoriteKey(favorite.UserID, favorite.ResourceID)].Active = true
	return nil
}

func (s *favoriteRepoStub) ListActiveByUser(ctx context.Context, filter models.FavoriteFilter) ([]models.FavoriteResource, int, error) {
	var out []models.FavoriteResource
	for _, f := range s.rows {
		if f.UserID == filter.UserID && f.Active {
			out = append(out, models.FavoriteResource{Favorite: *f, Resource: models.Resource{ID: f.ResourceID}})
		}
	}
	return out, len(out), nil
}

func (s *favoriteRepoStub) Deactivate(ctx context.Context, exec sqlx.ExtContext, userID, resourceID string) error {
	f, ok := s.rows[favoriteKey(userID, resourceID)]
	if !ok || !f.Active {
		return sql.ErrNoRows
	}
	f.Active = false
	return nil
}

func newFavoriteServiceForTest(t *testing.T, repo *favoriteRepoStub) (*FavoriteService, *txProviderMock) {
	provider, _ := newTxProviderMock(t)
	users := &userReaderStub{items: map[string]*models.User{"user-1": {ID: "user-1"}}}
	resources := &resourceReaderStub{items: map[string]*models.Resource{
		"res-1": {ID: "res-1"},
		"res-2": {ID: "res-2"},
	}}
	svc := NewFavoriteService(repo, users, resources, provider, nil, nil, testSchedulingConfig())
	return svc, provider.(*txProviderMock)
}

func TestFavoriteUpsertCreatesThenKeepsActive(t *testing.T) {
	repo := newFavoriteRepoStub()
	svc, tx := newFavoriteServiceForTest(t, repo)
	ctx := context.Background()

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	result, err := svc.Upsert(ctx, dto.FavoriteRequest{UserID: "user-1", ResourceID: "res-1"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.False(t, result.Reactivated)
	firstID := result.Favorite.ID

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	result, err = svc.Upsert(ctx, dto.FavoriteRequest{UserID: "user-1", ResourceID: "res-1"})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.False(t, result.Reactivated)
	assert.Equal(t, firstID, result.Favorite.ID)
	assert.Len(t, repo.rows, 1)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestFavoriteRemoveThenUpsertReactivates(t *testing.T) {
	repo := newFavoriteRepoStub()
	repo.rows[favoriteKey("user-1", "res-2")] = &models.Favorite{ID: "fav-old", UserID: "user-1", ResourceID: "res-2", Active: true}
	svc, tx := newFavoriteServiceForTest(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, "user-1", "res-2"))
	assert.ErrorIs(t, svc.Remove(ctx, "user-1", "res-2"), appErrors.ErrNotFound)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()
	result, err := svc.Upsert(ctx, dto.FavoriteRequest{UserID: "user-1", ResourceID: "res-2"})
	require.NoError(t, err)
	assert.True(t, result.Reactivated)
	assert.False(t, result.Created)
	assert.Equal(t, "fav-old", result.Favorite.ID)
	assert.True(t, repo.rows[favoriteKey("user-1", "res-2")].Active)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestFavoriteUpsertRejectsUnknownParties(t *testing.T) {
	svc, _ := newFavoriteServiceForTest(t, newFavoriteRepoStub())
	ctx := context.Background()

	_, err := svc.Upsert(ctx, dto.FavoriteRequest{UserID: "ghost", ResourceID: "res-1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Upsert(ctx, dto.FavoriteRequest{UserID: "user-1", ResourceID: "res-gone"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Upsert(ctx, dto.FavoriteRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFavoriteUpsertConcurrentInsertIsConflict(t *testing.T) {
	repo := newFavoriteRepoStub()
	repo.createErr = &pq.Error{Code: "23505"}
	svc, tx := newFavoriteServiceForTest(t, repo)

	tx.mock.ExpectBegin()
	tx.mock.ExpectRollback()
	_, err := svc.Upsert(context.Background(), dto.FavoriteRequest{UserID: "user-1", ResourceID: "res-1"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, tx.mock.ExpectationsWereMet())
}

func TestFavoriteListEmptyIsNotFound(t *testing.T) {
	repo := newFavoriteRepoStub()
	svc, _ := newFavoriteServiceForTest(t, repo)
	ctx := context.Background()

	_, _, err := svc.List(ctx, models.FavoriteFilter{UserID: "user-1"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = svc.List(ctx, models.FavoriteFilter{UserID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	repo.rows[favoriteKey("user-1", "res-1")] = &models.Favorite{ID: "fav-1", UserID: "user-1", ResourceID: "res-1", Active: true}
	items, pagination, err := svc.List(ctx, models.FavoriteFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "res-1", items[0].Resource.ID)
	assert.Equal(t, 1, pagination.TotalCount)
}
