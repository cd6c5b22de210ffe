package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// IssueRequest carries the principal and provenance of a new session.
// Only Username is required.
type IssueRequest struct {
	Username   string
	DeviceInfo string
	IPAddress  string
	UserAgent  string
}

// Issue creates a new session for an already authenticated user.
//
// When the user already holds MaxSessionsPerUser usable sessions, exactly one
// of them (the oldest by creation time) is revoked first. Without a capacity
// lock two concurrent calls can both pass the check, so the limit is soft.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (Session, error) {
	return s.issue(ctx, req, "")
}

// issue creates a session. A non-empty replacing names the session being
// rotated away: it is left out of the capacity count and is never evicted,
// so the caller can revoke it once the replacement exists.
func (s *Service) issue(ctx context.Context, req IssueRequest, replacing string) (Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return Session{}, ErrInvalidUsername
	}

	var row Session
	err := s.locker.WithLock(ctx, req.Username, s.store, func(ctx context.Context, st Store) error {
		now := s.clock.Now()

		n, err := s.usableExcluding(ctx, st, req.Username, replacing, now)
		if err != nil {
			return err
		}
		if n >= s.cfg.MaxSessionsPerUser {
			if err := s.evictOldest(ctx, st, req.Username, replacing, n); err != nil {
				return err
			}
		}

		id, err := newSessionID()
		if err != nil {
			return storageErr("generate_id", err)
		}

		row = Session{
			ID:         id,
			Username:   req.Username,
			DeviceInfo: req.DeviceInfo,
			IPAddress:  req.IPAddress,
			UserAgent:  req.UserAgent,
			Active:     true,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.SessionTTL),
		}
		return storageErr("create", st.Create(ctx, row))
	})
	if err != nil {
		return Session{}, storageErr("lock", err)
	}

	s.metrics.incIssued()
	s.log.Debug("session.issue", "username", row.Username, "session_id", row.ID, "device", row.DeviceInfo)

	return row, nil
}

func (s *Service) usableExcluding(ctx context.Context, st Store, username, excludeID string, now time.Time) (int, error) {
	n, err := st.CountUsable(ctx, username, now)
	if err != nil {
		return 0, storageErr("count_usable", err)
	}
	if excludeID == "" {
		return n, nil
	}

	old, err := st.Get(ctx, excludeID)
	if errors.Is(err, ErrSessionNotFound) {
		return n, nil
	}
	if err != nil {
		return 0, storageErr("get", err)
	}
	if old.Username == username && old.Usable(now) {
		n--
	}
	return n, nil
}

func (s *Service) evictOldest(ctx context.Context, st Store, username, excludeID string, count int) error {
	oldest, err := st.OldestUsable(ctx, username, s.clock.Now(), excludeID)
	if errors.Is(err, ErrSessionNotFound) {
		// Everything expired or was revoked since the count; nothing to evict.
		return nil
	}
	if err != nil {
		return storageErr("oldest_usable", err)
	}

	changed, err := st.Deactivate(ctx, oldest.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("deactivate", err)
	}
	if changed {
		s.metrics.incEvicted()
		s.log.Info("session.evict",
			"username", username,
			"session_id", oldest.ID,
			"usable", count,
			"capacity", s.cfg.MaxSessionsPerUser,
		)
	}
	return nil
}
