package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/tasktracker/internal/redact"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// EnvDatabaseURL names the variable holding the integration database URL.
const EnvDatabaseURL = "TASKTRACKER_DATABASE_URL"

// MigrationTableName is the goose version table used by the tests.
const MigrationTableName = "schema_migrations"

// TestTimeout bounds connection checks and transaction starts.
const TestTimeout = 10 * time.Second

// goose keeps its base filesystem and dialect in package state.
var gooseMu sync.Mutex

// DatabaseURL returns the configured integration database URL, or "".
func DatabaseURL() string {
	return os.Getenv(EnvDatabaseURL)
}

// ShouldSkip reports whether no integration database is configured.
func ShouldSkip() bool {
	return DatabaseURL() == ""
}

// Open connects to the integration database, skipping the test when none is
// configured. The connection is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	url := DatabaseURL()
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "open %s", redact.String(url))
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("database connection failed: %s", redact.Error(err))
	}
	return db
}

// Migrate applies every migration found under dir in fsys.
func Migrate(t testing.TB, db *sql.DB, fsys fs.FS, dir string) {
	t.Helper()
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetTableName(MigrationTableName)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, dir), "apply migrations")
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// can write freely without leaving rows behind.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("rollback failed: %v", err)
		}
	}()

	fn(t, tx)
}
