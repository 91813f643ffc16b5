package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const snapshotKey = "furbito:feed:snapshot"

// CachedProvider keeps the last snapshot in Redis for ttl. Cache failures
// are logged and fall through to the wrapped provider.
type CachedProvider struct {
	next Provider
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

// NewCachedProvider wraps next.
func NewCachedProvider(next Provider, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl, log: log.With(zap.String("component", "feed_cache"))}
}

// Snapshot returns the cached snapshot or refreshes it.
func (c *CachedProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	b, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	switch {
	case err == nil:
		var s Snapshot
		if err := json.Unmarshal(b, &s); err == nil {
			return &s, nil
		}
		c.log.Warn("corrupt cached snapshot, refreshing")
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", zap.Error(err))
	}

	s, err := c.next.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		if err := c.rdb.Set(ctx, snapshotKey, b, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", zap.Error(err))
		}
	}
	return s, nil
}

// Invalidate drops the cached snapshot so the next read hits the source.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, snapshotKey).Err()
}
