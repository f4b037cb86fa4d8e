package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	imageListKey    = "images:list"
	imageListGenKey = "images:list:gen"
)

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// RedisCacheRepository implements domain.ListCache using Redis
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// GetImageList retrieves the cached listing, nil on a miss
func (r *RedisCacheRepository) GetImageList(ctx context.Context) ([]domain.ListedImage, error) {
	var images []domain.ListedImage
	if err := r.Get(ctx, imageListKey, &images); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	if images == nil {
		// an empty listing is a hit, not a miss
		images = []domain.ListedImage{}
	}
	return images, nil
}

// ImageListVersion returns the current listing generation, 0 before the first invalidation
func (r *RedisCacheRepository) ImageListVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, imageListGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis get error: %w", err)
	}
	return version, nil
}

// SetImageList caches the listing with TTL. A listing enumerated before an
// invalidation is dropped so it cannot hide newer uploads.
func (r *RedisCacheRepository) SetImageList(ctx context.Context, version int64, images []domain.ListedImage, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.SetImageList",
		trace.WithAttributes(
			attribute.String("cache.key", imageListKey),
			attribute.Int64("cache.version", version),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	if images == nil {
		images = []domain.ListedImage{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, imageListGenKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, imageListKey, data, ttl)
			return nil
		})
		return err
	}, imageListGenKey)

	if errors.Is(err, redis.TxFailedErr) {
		span.SetAttributes(attribute.String("cache.result", "stale"))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// InvalidateImageList bumps the generation and drops the cached listing
func (r *RedisCacheRepository) InvalidateImageList(ctx context.Context) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.InvalidateImageList",
		trace.WithAttributes(attribute.String("cache.key", imageListKey)),
	)
	defer span.End()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, imageListGenKey)
		pipe.Del(ctx, imageListKey)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis invalidate error: %w", err)
	}
	return nil
}

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}
