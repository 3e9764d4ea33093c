// Package testdb opens, migrates and isolates the PostgreSQL database used by
// integration tests. Tests are skipped when no database URL is configured.
//
// Typical use:
//
//	db := testdb.Open(t)
//	testdb.Migrate(t, db, postgres.Migrations, postgres.MigrationsDir)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		// ...
//	})
package testdb
