package readiness

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultCacheKey = "meetbridge:readiness"

// cache: подмножество redis.Cmdable.
type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedChecker запоминает already_running на TTL, чтобы вкладки,
// входящие в уже прогретый бэкенд, не ждали лишний цикл.
// Ошибки redis не мешают проверке: вызов уходит в next.
type CachedChecker struct {
	next Checker
	rdb  cache
	key  string
	ttl  time.Duration
	log  *slog.Logger
}

func NewCachedChecker(next Checker, rdb cache, key string, ttl time.Duration) *CachedChecker {
	if key == "" {
		key = DefaultCacheKey
	}
	return &CachedChecker{
		next: next,
		rdb:  rdb,
		key:  key,
		ttl:  ttl,
		log:  logger.Component("readiness.cache"),
	}
}

func (c *CachedChecker) Check(ctx context.Context) (Status, error) {
	v, err := c.rdb.Get(ctx, c.key).Result()
	switch {
	case err == nil && Status(v).Ready():
		c.log.Debug("readiness served from cache", slog.String("key", c.key))
		return StatusAlreadyRunning, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Warn("readiness cache get failed", slog.String("key", c.key), logger.Err(err))
	}

	status, err := c.next.Check(ctx)
	if err != nil || !status.Ready() {
		return status, err
	}
	if err := c.rdb.Set(ctx, c.key, string(status), c.ttl).Err(); err != nil {
		c.log.Warn("readiness cache set failed", slog.String("key", c.key), logger.Err(err))
	}
	return status, nil
}
