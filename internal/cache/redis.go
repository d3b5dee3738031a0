package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type RedisCache struct {
	log    *logger.Logger
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache stores maps as JSON under <prefix><courseID>. ttl <= 0 keeps
// entries until overwritten.
func NewRedisCache(log *logger.Logger, rdb redis.UniversalClient, prefix string, ttl time.Duration) (*RedisCache, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "nbp:legacy:"
	}
	return &RedisCache{
		log:    log.With("cache", "RedisCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) key(courseID string) string { return c.prefix + courseID }

func (c *RedisCache) Get(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.Current().IncCacheOp("redis", "get", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.Current().IncCacheOp("redis", "get", "error")
		return nil, false, fmt.Errorf("redis get legacy map %s: %w", courseID, err)
	}
	var m domain.LegacyCourseMap
	if err := json.Unmarshal(raw, &m); err != nil {
		c.log.Warn("dropping undecodable legacy cache entry", "course_id", courseID, "error", err)
		_ = c.rdb.Del(ctx, c.key(courseID)).Err()
		observability.Current().IncCacheOp("redis", "get", "corrupt")
		return nil, false, nil
	}
	observability.Current().IncCacheOp("redis", "get", "hit")
	return m, true, nil
}

func (c *RedisCache) Put(ctx context.Context, courseID string, m domain.LegacyCourseMap) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(courseID), b, c.ttl).Err(); err != nil {
		observability.Current().IncCacheOp("redis", "put", "error")
		return fmt.Errorf("redis set legacy map %s: %w", courseID, err)
	}
	observability.Current().IncCacheOp("redis", "put", "ok")
	return nil
}
