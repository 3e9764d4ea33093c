package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/platform/postgres"
	"github.com/pressly/goose/v3"
)

var migrationCommands = []string{"up", "down", "redo", "reset", "status", "version"}

// slogGooseLogger adapts goose.Logger to slog. Fatalf does not exit; the
// error is returned to the command instead.
type slogGooseLogger struct {
	logger *slog.Logger
}

var _ goose.Logger = (*slogGooseLogger)(nil)

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// runMigrations executes a goose command against the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !validMigrationCommand(command) {
		return fmt.Errorf("unknown migration command %q", command)
	}
	log := logger.With("component", "migrations", "command", command)

	goose.SetBaseFS(postgres.Migrations)
	goose.SetTableName(postgres.MigrationTableName)
	goose.SetLogger(&slogGooseLogger{logger: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	log.Info("running migrations")
	if err := goose.RunContext(ctx, command, db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info("migrations finished", "version", version)
	return nil
}

func validMigrationCommand(command string) bool {
	for _, c := range migrationCommands {
		if c == command {
			return true
		}
	}
	return false
}
