package migrations

import "embed"

// Migrations holds the schema files applied by sqlstore.ApplyMigrations.
//
//go:embed *.sql
var Migrations embed.FS
