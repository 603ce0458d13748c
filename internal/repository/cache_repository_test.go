package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

func TestCacheRepositoryWithoutClientIsEmpty(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest []string
	err := repo.Get(ctx, "windows:resource:r1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	assert.NoError(t, repo.Set(ctx, "windows:resource:r1", []string{"a"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "windows:resource:r1"))
	assert.NoError(t, repo.Delete(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	assert.Equal(t, "flexitaim:windows:resource:r1", repo.key("windows:resource:r1"))

	staging := repo.WithNamespace("staging:")
	assert.Equal(t, "staging:windows:resource:r1", staging.key("windows:resource:r1"))
	assert.Equal(t, "flexitaim:x", repo.key("x"))
}

func TestCacheRepositoryWrapsBackendErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, nil)
	defer repo.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var dest []string
	err := repo.Get(ctx, "k", &dest)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Error(t, repo.Set(ctx, "k", []string{"a"}, time.Minute))
	assert.Error(t, repo.Delete(ctx, "k"))
}
