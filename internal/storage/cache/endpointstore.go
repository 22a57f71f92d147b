// Package cache adds a Redis read-aside layer in front of an EndpointStore.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get fills dest, or returns an error on a miss.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedEndpointStore decorates any EndpointStore with read-aside caching.
// Writes go to the real store first and then invalidate the cached entry.
type CachedEndpointStore struct {
	realStore dispatch.EndpointStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedEndpointStore(realStore dispatch.EndpointStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedEndpointStore {
	return &CachedEndpointStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedEndpointStore"),
	}
}

func (s *CachedEndpointStore) Get(ctx context.Context, key dispatch.EndpointKey) (*dispatch.EndpointRecord, error) {
	cacheKey := s.cacheKey(key)

	var cached dispatch.EndpointRecord
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	rec, err := s.realStore.Get(ctx, key)
	if err != nil {
		// Misses are not cached; a registration usually follows immediately.
		return nil, err
	}

	// Caching is an optimization; if Redis is down we serve from the store.
	if err := s.cache.Set(ctx, cacheKey, rec, s.ttl); err != nil {
		s.logger.Debug("Cache fill failed", "key", cacheKey, "err", err)
	}
	return rec, nil
}

func (s *CachedEndpointStore) Put(ctx context.Context, record dispatch.EndpointRecord) error {
	if err := s.realStore.Put(ctx, record); err != nil {
		return err
	}
	return s.invalidate(ctx, record.Key())
}

func (s *CachedEndpointStore) Delete(ctx context.Context, key dispatch.EndpointKey) error {
	if err := s.realStore.Delete(ctx, key); err != nil {
		return err
	}
	return s.invalidate(ctx, key)
}

func (s *CachedEndpointStore) invalidate(ctx context.Context, key dispatch.EndpointKey) error {
	return s.cache.Del(ctx, s.cacheKey(key))
}

func (s *CachedEndpointStore) cacheKey(key dispatch.EndpointKey) string {
	return fmt.Sprintf("notify:endpoints:%s:%s", key.DeviceType, key.Token)
}
