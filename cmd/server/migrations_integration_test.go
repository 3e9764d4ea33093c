//go:build integration

package main

import (
	"context"
	"testing"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/testdb"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_UpDownUp(t *testing.T) {
	db := testdb.Open(t)

	ctx := context.Background()
	log := logger.NewTestLogger(t)
	require.NoError(t, runMigrations(ctx, db, "up", log))
	require.NoError(t, runMigrations(ctx, db, "status", log))
	require.NoError(t, runMigrations(ctx, db, "reset", log))
	require.NoError(t, runMigrations(ctx, db, "up", log))
}
