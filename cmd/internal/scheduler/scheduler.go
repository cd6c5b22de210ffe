// Package scheduler runs named maintenance jobs on fixed intervals.
//
// Each job has its own ticker. A tick that arrives while the previous run of
// the same job is still in progress is skipped, so runs of one job never overlap.
package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidTask is returned by Add for a task without name, interval or func.
	ErrInvalidTask = errors.New("scheduler: invalid task")

	// ErrDuplicateTask is returned by Add when the name is already registered.
	ErrDuplicateTask = errors.New("scheduler: duplicate task")

	// ErrUnknownTask is returned by RunNow for an unregistered name.
	ErrUnknownTask = errors.New("scheduler: unknown task")

	// ErrStarted is returned by Add after Run has been called.
	ErrStarted = errors.New("scheduler: already started")
)

// Task is one periodic job.
type Task struct {
	Name     string
	Interval time.Duration

	// RunOnStart runs the job once immediately instead of waiting a full interval.
	RunOnStart bool

	// Timeout bounds a single run. Zero means the run is bounded only by Run's ctx.
	Timeout time.Duration

	Run func(ctx context.Context) error
}

type job struct {
	Task
	running sync.Mutex
}

// Scheduler owns a set of tasks. Register everything with Add, then call Run once.
type Scheduler struct {
	log     *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool
}

// New constructs an empty Scheduler. log and metrics may be nil.
func New(log *slog.Logger, metrics *Metrics) *Scheduler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		log:     log,
		metrics: metrics,
		jobs:    make(map[string]*job),
	}
}

// Add registers t.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Interval <= 0 || t.Run == nil || t.Timeout < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidTask, t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrStarted
	}
	if _, ok := s.jobs[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, t.Name)
	}
	s.jobs[t.Name] = &job{Task: t}
	s.order = append(s.order, t.Name)
	return nil
}

// Run starts every registered task and blocks until ctx is done and all
// in-flight runs have returned. Job failures are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			s.loop(gctx, j)
			return nil
		})
	}

	s.log.Info("scheduler.start", "jobs", len(jobs))
	err := g.Wait()
	s.log.Info("scheduler.stop")
	return err
}

// RunNow runs the named task immediately. ran is false when a run of the same
// task was already in progress and this call was skipped.
func (s *Scheduler) RunNow(ctx context.Context, name string) (ran bool, err error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return s.runOnce(ctx, j)
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	if j.RunOnStart {
		_, _ = s.runOnce(ctx, j)
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()

	t := time.NewTicker(j.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				_, _ = s.runOnce(ctx, j)
			}()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j *job) (bool, error) {
	if !j.running.TryLock() {
		s.metrics.observe(j.Name, resultSkipped, 0)
		s.log.Warn("job.skip", "job", j.Name, "reason", "previous run still in progress")
		return false, nil
	}
	defer j.running.Unlock()

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	runCtx := ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	runID := newRunID(time.Now())
	start := time.Now()
	s.log.Debug("job.start", "job", j.Name, "run_id", runID)

	err := safeRun(runCtx, j.Run)
	elapsed := time.Since(start)

	var pe *panicError
	if errors.As(err, &pe) {
		s.metrics.observe(j.Name, resultPanic, elapsed)
		s.log.Error("job.panic", "job", j.Name, "run_id", runID, "duration_ms", elapsed.Milliseconds(), "err", err)
		return true, err
	}
	if err != nil {
		s.metrics.observe(j.Name, resultError, elapsed)
		s.log.Error("job.fail", "job", j.Name, "run_id", runID, "duration_ms", elapsed.Milliseconds(), "err", err)
		return true, err
	}

	s.metrics.observe(j.Name, resultOK, elapsed)
	s.log.Info("job.done", "job", j.Name, "run_id", runID, "duration_ms", elapsed.Milliseconds())
	return true, nil
}

// panicError carries the value recovered from a job that panicked.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// safeRun turns a panic in fn into a *panicError so one bad job cannot kill the process.
func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn(ctx)
}

// newRunID returns a time-ordered id for correlating one run's log lines.
func newRunID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
