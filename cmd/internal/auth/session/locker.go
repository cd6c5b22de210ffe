package session

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Locker serializes issuance per username so capacity becomes a strict limit.
//
// WithLock waits until key is held or ctx ends, then runs fn and releases the
// key. fn must do all of its store work through st: a locker that holds the key
// on a database connection passes a Store bound to that same connection.
type Locker interface {
	WithLock(ctx context.Context, key string, store Store, fn func(ctx context.Context, st Store) error) error
}

// NewLocker builds the Locker selected by mode. pool and rdb are only needed
// for the postgres and redis modes respectively.
func NewLocker(mode string, pool *pgxpool.Pool, rdb redis.UniversalClient, ttl time.Duration) (Locker, error) {
	switch mode {
	case "", LockNone:
		return nopLocker{}, nil
	case LockMemory:
		return NewMemoryLocker(), nil
	case LockPostgres:
		if pool == nil {
			return nil, ErrConfig
		}
		return NewPostgresLocker(pool), nil
	case LockRedis:
		if rdb == nil {
			return nil, ErrConfig
		}
		return NewRedisLocker(rdb, ttl), nil
	default:
		return nil, ErrConfig
	}
}

// nopLocker keeps the soft capacity limit: concurrent issuances for the same
// user may each observe a count below capacity.
type nopLocker struct{}

func (nopLocker) WithLock(ctx context.Context, _ string, store Store, fn func(context.Context, Store) error) error {
	return fn(ctx, store)
}

// MemoryLocker is a per-key mutex valid inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker constructs an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Lock acquires key, honoring ctx while waiting. The returned unlock func is
// safe to call more than once.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl := l.locks[key]
	if kl == nil {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

// WithLock runs fn while holding key.
func (l *MemoryLocker) WithLock(ctx context.Context, key string, store Store, fn func(context.Context, Store) error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx, store)
}

func (l *MemoryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
