package session

import (
	"context"
	"errors"
	"strings"
)

// Revoke deactivates one session. Revoking an inactive session is a no-op.
func (s *Service) Revoke(ctx context.Context, id string) error {
	changed, err := s.store.Deactivate(ctx, strings.TrimSpace(id))
	if err != nil {
		return storageErr("deactivate", err)
	}
	if changed {
		s.metrics.addRevoked("one", 1)
		s.log.Info("session.revoke", "session_id", id)
	}
	return nil
}

// RevokeOwned is the self-service variant of Revoke: it only acts when the
// session belongs to username. Unknown ids also yield ErrSessionOwnership so
// the caller cannot discover which ids exist.
func (s *Service) RevokeOwned(ctx context.Context, username, id string) error {
	username = strings.TrimSpace(username)
	id = strings.TrimSpace(id)

	row, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return ErrSessionOwnership
	}
	if err != nil {
		return storageErr("get", err)
	}
	if username == "" || row.Username != username {
		return ErrSessionOwnership
	}

	err = s.Revoke(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return ErrSessionOwnership
	}
	return err
}

// RevokeAllForUser deactivates every active session of username and returns
// how many changed.
func (s *Service) RevokeAllForUser(ctx context.Context, username string) (int, error) {
	n, err := s.store.DeactivateByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return 0, storageErr("deactivate_by_username", err)
	}
	s.metrics.addRevoked("user", n)
	if n > 0 {
		s.log.Info("session.revoke_all.user", "username", username, "count", n)
	}
	return n, nil
}

// RevokeAllForDevice deactivates every active session recorded for deviceInfo,
// across all users.
func (s *Service) RevokeAllForDevice(ctx context.Context, deviceInfo string) (int, error) {
	n, err := s.store.DeactivateByDevice(ctx, deviceInfo)
	if err != nil {
		return 0, storageErr("deactivate_by_device", err)
	}
	s.metrics.addRevoked("device", n)
	if n > 0 {
		s.log.Info("session.revoke_all.device", "device", deviceInfo, "count", n)
	}
	return n, nil
}
