package session

import "github.com/google/uuid"

// newSessionID returns a random (v4) UUID string. The id doubles as the
// refresh credential, so it must come from crypto/rand, which uuid uses.
func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
