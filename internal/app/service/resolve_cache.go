package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snapurl/snapurl/internal/app/model"
	"go.uber.org/zap"
)

const resolveCacheKeyPrefix = "resolve:"

// CachedLink is the redirect-path cache entry. The expiry travels with
// the target so the resolver can re-check it on every hit; a cached
// URL is never served past its expiry.
type CachedLink struct {
	OriginalURL string    `json:"original_url"`
	ExpiryAt    time.Time `json:"expiry_at"`
}

// LinkCache is the resolver's view of the redirect-path cache.
type LinkCache interface {
	Get(ctx context.Context, code string) (*CachedLink, bool)
	Put(ctx context.Context, link *model.Link, now time.Time)
}

// ResolveCache keeps hot code-to-URL lookups in Redis. All failures
// degrade to a cache miss; a nil cache is always a miss.
type ResolveCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ LinkCache = (*ResolveCache)(nil)

// NewResolveCache creates a cache with the given maximum entry TTL.
func NewResolveCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ResolveCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolveCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached entry for code, if any.
func (c *ResolveCache) Get(ctx context.Context, code string) (*CachedLink, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, resolveCacheKeyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("resolve cache read failed", zap.String("code", code), zap.Error(err))
		}
		return nil, false
	}

	var entry CachedLink
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Debug("resolve cache entry corrupt", zap.String("code", code), zap.Error(err))
		return nil, false
	}
	return &entry, true
}

// Put stores the link's target, with the redis TTL capped at the
// link's remaining lifetime so entries vanish no later than the link.
func (c *ResolveCache) Put(ctx context.Context, link *model.Link, now time.Time) {
	if c == nil || c.rdb == nil {
		return
	}

	ttl := c.ttl
	if remaining := link.ExpiryAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(CachedLink{
		OriginalURL: link.OriginalURL,
		ExpiryAt:    link.ExpiryAt,
	})
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, resolveCacheKeyPrefix+link.Code, data, ttl).Err(); err != nil {
		c.logger.Debug("resolve cache write failed", zap.String("code", link.Code), zap.Error(err))
	}
}
