package postgres

import "embed"

// Migrations holds the goose SQL migrations for the schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

// MigrationTableName is the name of the table used by goose to track migrations.
const MigrationTableName = "schema_migrations"
