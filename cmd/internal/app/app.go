// Package app wires the bakery runtime: config, logging, session backends,
// maintenance jobs and the ops HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bakery/cmd/internal/auth/session"
	"bakery/cmd/internal/db/migrate"
	"bakery/cmd/internal/scheduler"
)

// Names of the maintenance jobs registered on the scheduler.
const (
	JobSweep       = "session.sweep"
	JobReport      = "session.report"
	JobDeepCleanup = "session.deep_cleanup"
)

// App is the bakery runtime. It owns the backend connections and closes them on shutdown.
type App struct {
	cfg     Config
	sessCfg session.Config
	log     Logger

	reg *prometheus.Registry

	db    *pgxpool.Pool
	redis *redis.Client

	sessions *session.Service
	sweeper  *session.Sweeper
	analyzer *session.Analyzer
	sched    *scheduler.Scheduler
}

// New constructs a fully wired App. With no database URL the in-memory store is used.
func New(ctx context.Context, cfg Config, sessCfg session.Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := sessCfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, sessCfg: sessCfg, log: log, reg: prometheus.NewRegistry()}

	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
	} else {
		if a.cfg.MigrateOnStart {
			if err := migrate.Run(a.cfg.DatabaseURL, migrate.Up); err != nil {
				return err
			}
			a.log.Info("db.migrated")
		}

		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return err
		}
		a.db = pool
		a.log.Info("db.enabled.postgres_store")
	}

	if a.cfg.RedisURL != "" {
		rdb, err := NewRedisClient(ctx, a.cfg)
		if err != nil {
			return err
		}
		a.redis = rdb
		a.log.Info("redis.enabled")
	}
	return nil
}

func (a *App) wire() error {
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sm, err := session.NewMetrics(a.reg)
	if err != nil {
		return err
	}
	jm, err := scheduler.NewMetrics(a.reg)
	if err != nil {
		return err
	}

	var store session.Store = session.NewMemoryStore()
	if a.db != nil {
		store = session.NewPostgresStore(a.db)
	}

	// A nil *redis.Client must not reach NewLocker as a non-nil interface.
	var rdb redis.UniversalClient
	if a.redis != nil {
		rdb = a.redis
	}
	locker, err := session.NewLocker(a.sessCfg.CapacityLock, a.db, rdb, a.sessCfg.LockTTL)
	if err != nil {
		return err
	}

	deps := session.Deps{Locker: locker, Log: a.log, Metrics: sm}
	a.sessions = session.NewService(a.sessCfg, store, deps)
	a.sweeper = session.NewSweeper(a.sessCfg, store, deps)
	a.analyzer = session.NewAnalyzer(store, deps)

	a.sched = scheduler.New(a.log, jm)
	return a.registerJobs()
}

func (a *App) registerJobs() error {
	tasks := []scheduler.Task{
		{
			Name:       JobSweep,
			Interval:   a.sessCfg.SweepInterval,
			RunOnStart: true,
			Timeout:    jobTimeout(a.sessCfg.SweepInterval),
			Run: func(ctx context.Context) error {
				_, err := a.sweeper.Sweep(ctx)
				return err
			},
		},
		{
			Name:     JobReport,
			Interval: a.sessCfg.ReportInterval,
			Timeout:  jobTimeout(a.sessCfg.ReportInterval),
			Run:      a.analyzer.Report,
		},
	}
	if a.sessCfg.DeepCleanupEnabled {
		tasks = append(tasks, scheduler.Task{
			Name:     JobDeepCleanup,
			Interval: a.sessCfg.DeepCleanupInterval,
			Timeout:  jobTimeout(a.sessCfg.DeepCleanupInterval),
			Run: func(ctx context.Context) error {
				_, err := a.sweeper.PurgeRevoked(ctx)
				return err
			},
		})
	}

	for _, t := range tasks {
		if err := a.sched.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// jobTimeout keeps a run well inside its interval, capped at 5 minutes.
func jobTimeout(interval time.Duration) time.Duration {
	return min(interval/2, 5*time.Minute)
}

// Sessions exposes the session lifecycle service to embedders.
func (a *App) Sessions() *session.Service { return a.sessions }

// Analyzer exposes statistics and anomaly reports.
func (a *App) Analyzer() *session.Analyzer { return a.analyzer }

// Scheduler exposes the maintenance job runner, e.g. for RunNow.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Handler returns the ops HTTP handler (health, readiness, metrics).
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	be := backends{db: a.db}
	if a.redis != nil {
		be.redis = a.redis
	}
	registerHTTP(mux, a.log, a.cfg, be, a.reg)
	return WithRequestLogging(mux, a.log)
}

// Run serves HTTP and runs the maintenance jobs until ctx is done or the
// server fails, then shuts both down and closes the backends.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}
	defer a.close()

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.db != nil,
		"capacity_lock", a.sessCfg.CapacityLock,
		"max_per_user", a.sessCfg.MaxSessionsPerUser,
		"session_ttl", a.sessCfg.SessionTTL.String(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.sched.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
