package session

import (
	"context"
	"time"
)

// Session mirrors the bakery.refresh_sessions row managed by this package.
//
// ID is both the primary key and the refresh credential handed to the client.
// Active only ever moves from true to false.
type Session struct {
	ID         string
	Username   string
	DeviceInfo string
	IPAddress  string
	UserAgent  string
	Active     bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
}

// Expired reports whether the session is at or past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Usable reports whether the session can still be presented.
func (s Session) Usable(now time.Time) bool {
	return s.Active && !s.Expired(now)
}

// lastActivity is the most recent moment the session was seen.
func (s Session) lastActivity() time.Time {
	if s.LastUsedAt != nil && s.LastUsedAt.After(s.CreatedAt) {
		return *s.LastUsedAt
	}
	return s.CreatedAt
}

// Store abstracts persistence for session state.
//
// Single-record writes must be atomic and a committed Deactivate must be
// visible to every later Get.
type Store interface {
	// Create inserts a new session. Reusing an id yields ErrDuplicateSession.
	Create(ctx context.Context, s Session) error

	// Get loads a session by id or returns ErrSessionNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// Touch sets last_used_at. ErrSessionNotFound when the row is gone.
	Touch(ctx context.Context, id string, at time.Time) error

	// Deactivate revokes one session and reports whether it changed.
	Deactivate(ctx context.Context, id string) (bool, error)

	// Delete removes one session.
	Delete(ctx context.Context, id string) error

	// CountUsable counts active, unexpired sessions for a username.
	CountUsable(ctx context.Context, username string, now time.Time) (int, error)

	// OldestUsable returns the usable session with the earliest created_at,
	// skipping excludeID (empty excludes nothing).
	OldestUsable(ctx context.Context, username string, now time.Time, excludeID string) (Session, error)

	ListByUsername(ctx context.Context, username string) ([]Session, error)
	ListByDevice(ctx context.Context, deviceInfo string) ([]Session, error)
	ListByActive(ctx context.Context, active bool) ([]Session, error)

	// ListExpired returns sessions whose expires_at <= threshold.
	ListExpired(ctx context.Context, threshold time.Time) ([]Session, error)

	// ListAll returns the full population.
	ListAll(ctx context.Context) ([]Session, error)

	// DeactivateByUsername revokes all active sessions of a user.
	DeactivateByUsername(ctx context.Context, username string) (int, error)

	// DeactivateByDevice revokes all active sessions of a device.
	DeactivateByDevice(ctx context.Context, deviceInfo string) (int, error)

	// DeleteExpired removes sessions whose expires_at <= threshold.
	DeleteExpired(ctx context.Context, threshold time.Time) (int, error)

	// DeleteInactiveSince removes revoked sessions whose last activity is <= threshold.
	DeleteInactiveSince(ctx context.Context, threshold time.Time) (int, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
