// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"bakery/cmd/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

var (
	// ErrNoDSN is returned when no database URL was provided.
	ErrNoDSN = errors.New("database url is not set (BAKERY_DATABASE_URL)")

	// ErrDirection is returned for anything other than Up or Down.
	ErrDirection = errors.New("direction must be up or down")
)

// Run applies every pending migration (Up) or rolls all of them back (Down).
// Being already at the target version is not an error.
func Run(dsn, direction string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ErrNoDSN
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("%w, got %q", ErrDirection, direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
