package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct {
	memoryCacheRepo
}

func (f *failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	var dest []string
	assert.False(t, nilSvc.Get(context.Background(), "k", &dest))
	nilSvc.Set(context.Background(), "k", []string{"a"}, 0)
	nilSvc.InvalidateWindows(context.Background(), "res-1")

	repo := newMemoryCacheRepo()
	disabled := NewCacheService(repo, nil, time.Minute, nil, false)
	disabled.Set(context.Background(), "k", []string{"a"}, 0)
	assert.Empty(t, repo.values)
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, metrics, 0, zap.NewNop(), true)
	ctx := context.Background()

	var dest []string
	assert.False(t, svc.Get(ctx, "k", &dest))
	svc.Set(ctx, "k", []string{"a", "b"}, 0)
	require.True(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, []string{"a", "b"}, dest)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))

	failing := NewCacheService(&failingCacheRepo{memoryCacheRepo: *newMemoryCacheRepo()}, nil, 0, zap.NewNop(), true)
	assert.False(t, failing.Get(ctx, "k", &dest))
}

func TestCacheServiceInvalidateWindows(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.InvalidateWindows(context.Background(), "res-1", "", "res-2", "res-1")
	assert.Equal(t, []string{windowsCachePrefix + "res-1", windowsCachePrefix + "res-2"}, repo.deleted)

	repo.deleted = nil
	svc.InvalidateWindows(context.Background(), "")
	assert.Empty(t, repo.deleted)
}
