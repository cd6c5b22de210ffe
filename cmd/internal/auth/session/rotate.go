package session

import (
	"context"
	"errors"
	"strings"
)

// Rotate replaces oldID with a fresh session carrying the same owner and
// provenance, then revokes oldID.
//
// The old session does not count against capacity while its replacement is
// issued and is never the one evicted. It is revoked only after the
// replacement is stored, so a failure in between leaves both usable rather
// than neither.
func (s *Service) Rotate(ctx context.Context, oldID string) (Session, error) {
	oldID = strings.TrimSpace(oldID)
	if oldID == "" {
		return Session{}, ErrSessionNotFound
	}

	old, err := s.store.Get(ctx, oldID)
	if err != nil {
		return Session{}, storageErr("get", err)
	}
	if !old.Active {
		return Session{}, ErrSessionRevoked
	}
	if old.Expired(s.clock.Now()) {
		return Session{}, ErrSessionExpired
	}

	next, err := s.issue(ctx, IssueRequest{
		Username:   old.Username,
		DeviceInfo: old.DeviceInfo,
		IPAddress:  old.IPAddress,
		UserAgent:  old.UserAgent,
	}, oldID)
	if err != nil {
		return Session{}, err
	}

	// A concurrent revoke or sweep may have removed oldID meanwhile.
	changed, err := s.store.Deactivate(ctx, oldID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		s.log.Error("session.rotate.revoke_old.fail", "err", err, "session_id", oldID, "replacement_id", next.ID)
		return Session{}, storageErr("deactivate", err)
	}
	if changed {
		s.metrics.addRevoked("rotation", 1)
	}

	s.metrics.incRotated()
	s.log.Debug("session.rotate", "username", old.Username, "session_id", oldID, "replacement_id", next.ID)

	return next, nil
}
