// Package migrations embeds the SQL schema for the snapshot store so the
// binary can migrate without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
