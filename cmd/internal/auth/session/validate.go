package session

import (
	"context"
	"errors"
	"strings"
)

// Validate reports whether id names a usable session and, if so, records the
// use by updating last_used_at.
//
// A missing, revoked or expired session is a normal false result. Only store
// failures are returned as errors.
func (s *Service) Validate(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		s.metrics.incValidation("missing")
		return false, nil
	}

	row, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		s.metrics.incValidation("missing")
		return false, nil
	}
	if err != nil {
		return false, storageErr("get", err)
	}

	now := s.clock.Now()
	switch {
	case !row.Active:
		s.metrics.incValidation("revoked")
		return false, nil
	case row.Expired(now):
		s.metrics.incValidation("expired")
		return false, nil
	}

	if err := s.store.Touch(ctx, id, now); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Swept between the read and the touch.
			s.metrics.incValidation("missing")
			return false, nil
		}
		return false, storageErr("touch", err)
	}

	s.metrics.incValidation("valid")
	return true, nil
}
