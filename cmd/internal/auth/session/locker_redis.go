package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisLockRetry = 25 * time.Millisecond

// Deletes the lock only when it is still held by the caller's token.
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every process using the same Redis.
//
// The lease expires after ttl so a crashed holder cannot block a user forever.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocker constructs a RedisLocker. A non-positive ttl falls back to 10s.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// WithLock runs fn while holding the lease for key.
func (l *RedisLocker) WithLock(ctx context.Context, key string, store Store, fn func(context.Context, Store) error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx, store)
}

// Lock polls SET NX until the key is free or ctx ends. The returned unlock
// func is safe to call more than once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.NewString()

	t := time.NewTicker(redisLockRetry)
	defer t.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, storageErr("lock", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			uctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			// Best effort; the lease expires on its own.
			_ = redisUnlockScript.Run(uctx, l.client, []string{k}, token).Err()
		})
	}, nil
}
