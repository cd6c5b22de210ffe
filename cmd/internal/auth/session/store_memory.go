package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the Store used when no database is configured (dev runs, tests).
// Memory use is bounded by the rows currently stored: swept rows are forgotten.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  uint64
	rows map[string]*memRow
}

type memRow struct {
	seq uint64
	s   Session
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]*memRow),
	}
}

// Create inserts a copy of s.
func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return storageErr("create", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[s.ID]; ok {
		return ErrDuplicateSession
	}
	m.seq++
	m.rows[s.ID] = &memRow{seq: m.seq, s: clone(s)}
	return nil
}

// Get returns a copy of the session with the given id.
func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, storageErr("get", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rows[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return clone(r.s), nil
}

// Touch records a use of the session.
func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return storageErr("touch", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return ErrSessionNotFound
	}
	t := at
	r.s.LastUsedAt = &t
	return nil
}

// Deactivate revokes one session.
func (m *MemoryStore) Deactivate(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storageErr("deactivate", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return false, ErrSessionNotFound
	}
	if !r.s.Active {
		return false, nil
	}
	r.s.Active = false
	return true, nil
}

// Delete removes one session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.rows, id)
	return nil
}

// CountUsable counts active, unexpired sessions for username.
func (m *MemoryStore) CountUsable(ctx context.Context, username string, now time.Time) (int, error) {
	list, err := m.filter(ctx, "count_usable", func(s Session) bool {
		return s.Username == username && s.Usable(now)
	})
	return len(list), err
}

// OldestUsable returns the earliest created usable session; insertion order breaks ties.
func (m *MemoryStore) OldestUsable(ctx context.Context, username string, now time.Time, excludeID string) (Session, error) {
	list, err := m.filter(ctx, "oldest_usable", func(s Session) bool {
		return s.Username == username && s.Usable(now) && (excludeID == "" || s.ID != excludeID)
	})
	if err != nil {
		return Session{}, err
	}
	if len(list) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return list[0], nil
}

func (m *MemoryStore) ListByUsername(ctx context.Context, username string) ([]Session, error) {
	return m.filter(ctx, "list_by_username", func(s Session) bool { return s.Username == username })
}

func (m *MemoryStore) ListByDevice(ctx context.Context, deviceInfo string) ([]Session, error) {
	return m.filter(ctx, "list_by_device", func(s Session) bool { return s.DeviceInfo == deviceInfo })
}

func (m *MemoryStore) ListByActive(ctx context.Context, active bool) ([]Session, error) {
	return m.filter(ctx, "list_by_active", func(s Session) bool { return s.Active == active })
}

func (m *MemoryStore) ListExpired(ctx context.Context, threshold time.Time) ([]Session, error) {
	return m.filter(ctx, "list_expired", func(s Session) bool { return s.Expired(threshold) })
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]Session, error) {
	return m.filter(ctx, "list_all", func(Session) bool { return true })
}

// DeactivateByUsername revokes every active session of username.
func (m *MemoryStore) DeactivateByUsername(ctx context.Context, username string) (int, error) {
	return m.deactivateWhere(ctx, "deactivate_by_username", func(s Session) bool { return s.Username == username })
}

// DeactivateByDevice revokes every active session of deviceInfo.
func (m *MemoryStore) DeactivateByDevice(ctx context.Context, deviceInfo string) (int, error) {
	return m.deactivateWhere(ctx, "deactivate_by_device", func(s Session) bool { return s.DeviceInfo == deviceInfo })
}

// DeleteExpired removes sessions with expires_at <= threshold.
func (m *MemoryStore) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	return m.deleteWhere(ctx, "delete_expired", func(s Session) bool { return s.Expired(threshold) })
}

// DeleteInactiveSince removes revoked sessions idle since threshold.
func (m *MemoryStore) DeleteInactiveSince(ctx context.Context, threshold time.Time) (int, error) {
	return m.deleteWhere(ctx, "delete_inactive", func(s Session) bool {
		return !s.Active && !s.lastActivity().After(threshold)
	})
}

// filter returns matching copies ordered by created_at, then insertion.
func (m *MemoryStore) filter(ctx context.Context, op string, keep func(Session) bool) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(op, err)
	}

	m.mu.RLock()
	rows := make([]*memRow, 0, len(m.rows))
	for _, r := range m.rows {
		if keep(r.s) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].s.CreatedAt.Equal(rows[j].s.CreatedAt) {
			return rows[i].s.CreatedAt.Before(rows[j].s.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]Session, len(rows))
	for i, r := range rows {
		out[i] = clone(r.s)
	}
	m.mu.RUnlock()

	return out, nil
}

func (m *MemoryStore) deactivateWhere(ctx context.Context, op string, match func(Session) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.rows {
		if r.s.Active && match(r.s) {
			r.s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) deleteWhere(ctx context.Context, op string, match func(Session) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, r := range m.rows {
		if match(r.s) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func clone(s Session) Session {
	if s.LastUsedAt != nil {
		t := *s.LastUsedAt
		s.LastUsedAt = &t
	}
	return s
}
