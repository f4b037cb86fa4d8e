package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheRepository(client), mr
}

func TestRedisImageListCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	images, err := cache.GetImageList(ctx)
	require.NoError(t, err)
	assert.Nil(t, images, "miss returns nil")

	want := []domain.ListedImage{
		{URL: "http://localhost:5000/uploads/1.png", Label: "cat"},
		{URL: "http://localhost:5000/uploads/2.png"},
	}
	require.NoError(t, cache.SetImageList(ctx, 0, want, time.Minute))

	got, err := cache.GetImageList(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	got, err = cache.GetImageList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "entry expires after ttl")
}

func TestRedisImageListCacheEmptyIsHit(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.SetImageList(ctx, 0, nil, time.Minute))
	got, err := cache.GetImageList(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRedisImageListInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetImageList(ctx, 0, []domain.ListedImage{{URL: "u"}}, time.Minute))
	require.NoError(t, cache.InvalidateImageList(ctx))
	assert.False(t, mr.Exists(imageListKey))

	version, err := cache.ImageListVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestRedisImageListDropsStaleListing(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	version, err := cache.ImageListVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	// an upload lands between enumeration and caching
	require.NoError(t, cache.InvalidateImageList(ctx))

	require.NoError(t, cache.SetImageList(ctx, version, []domain.ListedImage{}, time.Minute))
	assert.False(t, mr.Exists(imageListKey), "listing enumerated before the upload is not cached")

	got, err := cache.GetImageList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// a listing taken at the current generation is cached
	version, err = cache.ImageListVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.SetImageList(ctx, version, []domain.ListedImage{{URL: "u"}}, time.Minute))
	assert.True(t, mr.Exists(imageListKey))
}

func TestRedisCacheUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	cache := NewRedisCacheRepository(client)
	mr.Close()

	_, err = cache.GetImageList(ctx)
	assert.Error(t, err)
	_, err = cache.ImageListVersion(ctx)
	assert.Error(t, err)
	assert.Error(t, cache.SetImageList(ctx, 0, nil, time.Minute))
	assert.Error(t, cache.InvalidateImageList(ctx))
}
