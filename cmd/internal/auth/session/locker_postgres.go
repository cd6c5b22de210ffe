package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const unlockTimeout = 5 * time.Second

// PostgresLocker serializes a key across every process sharing the database
// with a transaction-scoped advisory lock.
//
// The critical section runs inside that transaction: each caller uses exactly
// one pooled connection, so a full pool of waiters cannot starve the holder.
// A failed critical section rolls back, eviction included.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

// NewPostgresLocker creates an advisory-lock Locker on pool.
func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

// WithLock begins a transaction, takes pg_advisory_xact_lock for key and runs
// fn with a PostgresStore bound to the transaction. The lock is released on
// commit or rollback. A store other than *PostgresStore is passed through
// unchanged.
func (l *PostgresLocker) WithLock(ctx context.Context, key string, store Store, fn func(context.Context, Store) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr("lock", err)
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		_ = tx.Rollback(rctx) // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey(key)); err != nil {
		return storageErr("lock", err)
	}

	st := store
	if pg, ok := store.(*PostgresStore); ok {
		st = pg.withTx(tx)
	}
	if err := fn(ctx, st); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func lockKey(key string) string {
	return "bakery.session.capacity:" + key
}
