package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SessionTTL = 60 * time.Minute
	cfg.MaxSessionsPerUser = 5
	return cfg
}

type fixture struct {
	store   *MemoryStore
	clock   *manualClock
	svc     *Service
	sweeper *Sweeper
	an      *Analyzer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := NewMemoryStore()
	clock := newManualClock()
	deps := Deps{Clock: clock}

	return &fixture{
		store:   store,
		clock:   clock,
		svc:     NewService(cfg, store, deps),
		sweeper: NewSweeper(cfg, store, deps),
		an:      NewAnalyzer(store, deps),
	}
}

func (f *fixture) mustIssue(t *testing.T, username, device string) Session {
	t.Helper()
	s, err := f.svc.Issue(context.Background(), IssueRequest{
		Username:   username,
		DeviceInfo: device,
		IPAddress:  "203.0.113.7",
		UserAgent:  "bakery-test/1.0",
	})
	if err != nil {
		t.Fatalf("Issue(%q): %v", username, err)
	}
	return s
}

func (f *fixture) mustValidate(t *testing.T, id string) bool {
	t.Helper()
	ok, err := f.svc.Validate(context.Background(), id)
	if err != nil {
		t.Fatalf("Validate(%q): %v", id, err)
	}
	return ok
}

func (f *fixture) mustGet(t *testing.T, id string) Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get(%q): %v", id, err)
	}
	return s
}

var errBackendDown = errors.New("connection refused")

// brokenStore fails every call with errBackendDown.
type brokenStore struct{ *MemoryStore }

func (brokenStore) Create(context.Context, Session) error { return errBackendDown }
func (brokenStore) Get(context.Context, string) (Session, error) {
	return Session{}, errBackendDown
}
func (brokenStore) CountUsable(context.Context, string, time.Time) (int, error) {
	return 0, errBackendDown
}
func (brokenStore) Deactivate(context.Context, string) (bool, error) { return false, errBackendDown }
func (brokenStore) DeactivateByUsername(context.Context, string) (int, error) {
	return 0, errBackendDown
}
func (brokenStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, errBackendDown
}
func (brokenStore) ListAll(context.Context) ([]Session, error) { return nil, errBackendDown }

// failingCreateStore refuses new rows and otherwise behaves like its MemoryStore.
type failingCreateStore struct{ *MemoryStore }

func (failingCreateStore) Create(context.Context, Session) error { return errBackendDown }

// vanishingStore reports every row as gone once Touch is reached, as when a
// sweep deletes it between the read and the write.
type vanishingStore struct{ *MemoryStore }

func (vanishingStore) Touch(context.Context, string, time.Time) error { return ErrSessionNotFound }
