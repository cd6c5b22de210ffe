package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when an id does not match any session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session is past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSessionOwnership is returned when a caller acts on a session it does not own.
	// Callers must map it and ErrSessionNotFound to the same external response.
	ErrSessionOwnership = errors.New("session not owned by caller")

	// ErrInvalidUsername is returned when a session is requested without a username.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrDuplicateSession is returned by stores when a session id is reused.
	ErrDuplicateSession = errors.New("duplicate session id")

	// ErrStorage marks failures of the underlying store.
	ErrStorage = errors.New("session storage failure")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// StorageError wraps a backend failure with the store operation that raised it.
//
// It matches both ErrStorage and the wrapped cause under errors.Is, so callers
// can still detect context cancellation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// storageErr wraps err unless it is nil or already a domain error the store
// reports on purpose (not found, duplicate id).
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrDuplicateSession) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
