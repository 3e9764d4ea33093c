//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/store"
	"github.com/phrazzld/tasktracker/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB migrates the integration database and returns a transaction
// that is rolled back when the test ends.
func openTestDB(t *testing.T) *sql.Tx {
	t.Helper()
	db := testdb.Open(t)
	testdb.Migrate(t, db, Migrations, MigrationsDir)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func TestPipelineRoundTrip(t *testing.T) {
	tx := openTestDB(t)
	ctx := context.Background()
	messages := NewPostgresMessageStore(tx, nil)
	tasks := NewPostgresTaskStore(tx, nil)
	pending := NewPostgresPendingStore(tx, nil)

	chatID := time.Now().UnixNano()
	now := time.Now().UTC()
	var ids []int64
	for i, text := range []string{"Can you add dark mode?", "thanks!", "Also fix the login crash"} {
		m, err := domain.NewRawMessage(chatID, int64(i+1), "anna", "Anna", text, now.Add(-time.Duration(30-i)*time.Minute))
		require.NoError(t, err)
		inserted, err := messages.Save(ctx, m)
		require.NoError(t, err)
		require.True(t, inserted)
		ids = append(ids, m.ID)
	}

	dup, err := domain.NewRawMessage(chatID, 1, "anna", "Anna", "again", now)
	require.NoError(t, err)
	inserted, err := messages.Save(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	chats, err := messages.ListChatsWithUnprocessed(ctx, now.Add(-time.Hour), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, chats, chatID)

	task, err := domain.NewProcessedTask(chatID, "Добавить темную тему", ids)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(ctx, task))

	p, err := domain.NewPendingPrioritization(task)
	require.NoError(t, err)
	require.NoError(t, pending.Create(ctx, p))

	claimed, err := pending.Claim(ctx, p.ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, task.ID, claimed.TaskID)

	_, err = pending.Claim(ctx, p.ID, domain.PriorityLow)
	assert.ErrorIs(t, err, store.ErrPendingClaimed)

	require.NoError(t, pending.Delete(ctx, p.ID))
	assert.ErrorIs(t, pending.Delete(ctx, p.ID), store.ErrPendingNotFound)

	n, err := messages.MarkProcessed(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := messages.FetchUnprocessed(ctx, chatID, now.Add(-time.Hour), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, left)

	all, err := messages.FetchAll(ctx, chatID, now.Add(-time.Hour), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
