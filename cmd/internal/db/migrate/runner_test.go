package migrate

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"bakery/cmd/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, Up); !errors.Is(err, ErrNoDSN) {
			t.Fatalf("Run(%q): expected ErrNoDSN, got %v", dsn, err)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "UP", "Down", "sideways"} {
		t.Run(dir, func(t *testing.T) {
			err := Run("postgres://localhost/bakery", dir)
			if !errors.Is(err, ErrDirection) {
				t.Fatalf("expected ErrDirection, got %v", err)
			}
		})
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}

	if len(ups) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
}

// Applies and re-applies the schema against BAKERY_TEST_DATABASE_URL.
func TestRun_Integration(t *testing.T) {
	dsn := os.Getenv("BAKERY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BAKERY_TEST_DATABASE_URL is not set; skipping migration integration test")
	}

	if err := Run(dsn, Up); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("Run up twice: %v", err)
	}
}
