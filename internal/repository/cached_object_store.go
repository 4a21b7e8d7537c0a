package repository

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
)

// CachedObjectStore wraps an ObjectStore with a Redis cache of folder listings.
// Writes through the wrapper invalidate every cached listing of the bucket.
type CachedObjectStore struct {
	store domain.ObjectStore
	cache *RedisCacheRepository
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedObjectStore creates a new cached object store
func NewCachedObjectStore(store domain.ObjectStore, cache *RedisCacheRepository, ttl time.Duration, log zerolog.Logger) *CachedObjectStore {
	return &CachedObjectStore{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "object-store-cache").Logger(),
	}
}

// Upload writes through and drops the bucket's cached listings
func (r *CachedObjectStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, opts domain.UploadOptions) error {
	if err := r.store.Upload(ctx, bucket, key, body, size, opts); err != nil {
		return err
	}
	r.invalidate(ctx, bucket)
	return nil
}

// PublicURL does not touch the cache
func (r *CachedObjectStore) PublicURL(bucket, key string) (string, error) {
	return r.store.PublicURL(bucket, key)
}

// Remove deletes through and drops the bucket's cached listings
func (r *CachedObjectStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	if err := r.store.Remove(ctx, bucket, keys...); err != nil {
		return err
	}
	r.invalidate(ctx, bucket)
	return nil
}

// List serves a folder listing from cache, falling back to the store on a miss
func (r *CachedObjectStore) List(ctx context.Context, bucket, folder string, limit, offset int) ([]domain.ObjectInfo, error) {
	key := storageListKey(bucket, strings.Trim(folder, "/"), limit, offset)

	var items []domain.ObjectInfo
	if err := r.cache.Get(ctx, key, &items); err == nil {
		if items == nil {
			items = []domain.ObjectInfo{}
		}
		return items, nil
	}

	items, err := r.store.List(ctx, bucket, folder, limit, offset)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, items, r.ttl)

	return items, nil
}

// ListBuckets is never cached; provisioning needs the live answer
func (r *CachedObjectStore) ListBuckets(ctx context.Context) ([]string, error) {
	return r.store.ListBuckets(ctx)
}

// CreateBucket passes straight through
func (r *CachedObjectStore) CreateBucket(ctx context.Context, name string, opts domain.BucketOptions) error {
	return r.store.CreateBucket(ctx, name, opts)
}

func (r *CachedObjectStore) invalidate(ctx context.Context, bucket string) {
	if err := r.cache.DeleteByPattern(ctx, storageListPattern(bucket)); err != nil {
		r.log.Warn().Err(err).Str("bucket", bucket).Msg("failed to invalidate listing cache")
	}
}
