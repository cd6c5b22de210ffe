package session

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Service implements the request-path session operations: issue, validate,
// rotate and revoke.
//
// It holds no state across calls besides its injected configuration; all
// session state lives in the Store.
type Service struct {
	cfg     Config
	store   Store
	clock   Clock
	locker  Locker
	log     *slog.Logger
	metrics *Metrics
}

// Deps are the optional collaborators of Service, Sweeper and Analyzer.
// Zero values fall back to the system clock, no capacity lock, a discarding
// logger and no metrics.
type Deps struct {
	Clock   Clock
	Locker  Locker
	Log     *slog.Logger
	Metrics *Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Locker == nil {
		d.Locker = nopLocker{}
	}
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d
}

// NewService constructs a Service over store.
func NewService(cfg Config, store Store, deps Deps) *Service {
	deps = deps.withDefaults()
	return &Service{
		cfg:     cfg,
		store:   store,
		clock:   deps.Clock,
		locker:  deps.Locker,
		log:     deps.Log,
		metrics: deps.Metrics,
	}
}

// Get loads a session for administrative use. Unlike Validate it fails with
// ErrSessionNotFound for unknown ids.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	row, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Session{}, storageErr("get", err)
	}
	return row, nil
}

// ListForUser returns a user's sessions, newest first. With activeOnly it
// keeps only usable sessions.
func (s *Service) ListForUser(ctx context.Context, username string, activeOnly bool) ([]Session, error) {
	list, err := s.store.ListByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, storageErr("list_by_username", err)
	}
	if activeOnly {
		now := s.clock.Now()
		kept := list[:0]
		for _, row := range list {
			if row.Usable(now) {
				kept = append(kept, row)
			}
		}
		list = kept
	}
	sortNewestFirst(list)
	return list, nil
}

// ListForDevice returns every session recorded for deviceInfo, newest first.
func (s *Service) ListForDevice(ctx context.Context, deviceInfo string) ([]Session, error) {
	list, err := s.store.ListByDevice(ctx, deviceInfo)
	if err != nil {
		return nil, storageErr("list_by_device", err)
	}
	sortNewestFirst(list)
	return list, nil
}

func sortNewestFirst(list []Session) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
