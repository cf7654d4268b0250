package migrations

import "embed"

// FS holds the schema files applied by database.Migrator, in file name order
//
//go:embed *.sql
var FS embed.FS
