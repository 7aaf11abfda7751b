// Package db ships the SQL migrations inside the binary.
package db

import "embed"

// MigrationsDir is the directory of Migrations that goose reads.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
