// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: raw messages,
// processed tasks, pending prioritization records and the staff table.
// It also embeds the goose migrations that create that schema.
//
// All stores accept a store.DBTX so the same code runs against a *sql.DB opened
// with the pgx stdlib driver or inside a transaction.
package postgres
