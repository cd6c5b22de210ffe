package session

import (
	"context"
	"log/slog"
)

// Sweeper deletes sessions that can no longer be used.
//
// Deleting is storage hygiene only: an expired row that has not been swept yet
// already fails validation.
type Sweeper struct {
	cfg     Config
	store   Store
	clock   Clock
	log     *slog.Logger
	metrics *Metrics
}

// NewSweeper constructs a Sweeper over store.
func NewSweeper(cfg Config, store Store, deps Deps) *Sweeper {
	deps = deps.withDefaults()
	return &Sweeper{cfg: cfg, store: store, clock: deps.Clock, log: deps.Log, metrics: deps.Metrics}
}

// Sweep deletes every session whose expiry is at or before now, active or
// not, and returns the number of rows removed.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := w.clock.Now()

	n, err := w.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, storageErr("delete_expired", err)
	}

	w.metrics.addSwept("expired", n)
	w.log.Info("session.sweep", "deleted", n, "threshold", now)
	return n, nil
}

// PurgeRevoked deletes revoked sessions that have not been used for
// DeepCleanupAfter. It does nothing when deep cleanup is disabled.
func (w *Sweeper) PurgeRevoked(ctx context.Context) (int, error) {
	if !w.cfg.DeepCleanupEnabled {
		return 0, nil
	}

	threshold := w.clock.Now().Add(-w.cfg.DeepCleanupAfter)

	n, err := w.store.DeleteInactiveSince(ctx, threshold)
	if err != nil {
		return 0, storageErr("delete_inactive", err)
	}

	w.metrics.addSwept("revoked", n)
	w.log.Info("session.deep_cleanup", "deleted", n, "threshold", threshold)
	return n, nil
}
