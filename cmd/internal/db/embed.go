// Package db holds the embedded SQL migrations for the session store.
package db

import "embed"

// MigrationFS embeds the SQL files under migrations/.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
