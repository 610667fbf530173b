package redis

import (
	"context"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
)

// ProfileCache caches progression records by user ID.
type ProfileCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewProfileCache creates a new ProfileCache.
func NewProfileCache(cache *Cache, ttl time.Duration) *ProfileCache {
	return &ProfileCache{cache: cache, ttl: ttl}
}

// Get returns the cached record or ErrCacheMiss.
func (p *ProfileCache) Get(ctx context.Context, userID string) (*progression.Record, error) {
	var rec progression.Record
	if err := p.cache.Get(ctx, ProfileKey(userID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set caches rec.
func (p *ProfileCache) Set(ctx context.Context, rec *progression.Record) error {
	if rec == nil {
		return nil
	}
	return p.cache.Set(ctx, ProfileKey(rec.UserID), rec, p.ttl)
}

// Invalidate drops the cached record of userID.
func (p *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return p.cache.Delete(ctx, ProfileKey(userID))
}
