package lock

import (
	"context"
	"time"

	"backoffice-marketsync-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// lockTTL caps how long a refresh lock can outlive its holder.
const lockTTL = 30 * time.Second

// RedisLocker is a best-effort distributed lock on Redis SETNX. Losing Redis
// only means duplicate token refreshes may happen; the credential store's
// atomic full-tuple write keeps them harmless.
type RedisLocker struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisLocker creates a new Redis-backed refresh locker.
func NewRedisLocker(client *redis.Client, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: logger,
	}
}

// TryLock attempts to take the named lock without blocking. Redis errors are
// treated as "lock acquired" so an outage never stalls refreshes.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool) {
	ok, err := l.client.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		l.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Refresh lock unavailable, proceeding without it")
		return func() {}, true
	}
	if !ok {
		return nil, false
	}

	release := func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Failed to release refresh lock")
		}
	}
	return release, true
}

var _ ports.RefreshLocker = (*RedisLocker)(nil)
