package prioritization

import (
	"context"
	"fmt"
	"testing"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceImportantCap_DowngradesPreviousMostRecent(t *testing.T) {
	ctx := context.Background()
	l := newFlakyLedger()
	obs := newRecordingObserver()
	e := NewEnforcer(l, 10, logger.NewTestLogger(t), obs)

	seedImportant(t, l, 10)
	require.NoError(t, l.AppendRow(ctx, "Client", "just added", domain.PriorityCritical))

	exceeded, err := e.IsImportantCapExceeded(ctx)
	require.NoError(t, err)
	assert.True(t, exceeded)

	row, err := e.EnforceImportantCap(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "existing 10", row.Description)
	assert.Equal(t, domain.PriorityMedium, row.Priority)

	n, err := e.CountImportant(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	rows := l.Rows()
	assert.Equal(t, domain.PriorityCritical, rows[len(rows)-1].Priority, "just-inserted row keeps its tier")
	assert.Equal(t, domain.PriorityMedium, rows[len(rows)-2].Priority)
	assert.Equal(t, 1, obs.Downgrades)
}

func TestEnforceImportantCap_NoopWithinCap(t *testing.T) {
	l := newFlakyLedger()
	e := NewEnforcer(l, 10, logger.NewTestLogger(t), nil)
	seedImportant(t, l, 10)

	row, err := e.EnforceImportantCap(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)

	exceeded, err := e.IsImportantCapExceeded(context.Background())
	require.NoError(t, err)
	assert.False(t, exceeded, "count equal to cap is not exceeded")
}

func TestEnforceImportantCap_IgnoresNonImportantRows(t *testing.T) {
	ctx := context.Background()
	l := newFlakyLedger()
	e := NewEnforcer(l, 2, logger.NewTestLogger(t), nil)

	require.NoError(t, l.AppendRow(ctx, "P", "a", domain.PriorityHigh))
	require.NoError(t, l.AppendRow(ctx, "P", "b", domain.PriorityBlocker))
	require.NoError(t, l.AppendRow(ctx, "P", "c", domain.PriorityLow))
	require.NoError(t, l.AppendRow(ctx, "P", "d", domain.PriorityHigh))

	row, err := e.EnforceImportantCap(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "b", row.Description)
	assert.Equal(t, 3, row.Index)
}

func TestAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("room left", func(t *testing.T) {
		l := newFlakyLedger()
		seedImportant(t, l, 9)
		ok, err := NewEnforcer(l, 10, logger.NewTestLogger(t), nil).Admit(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("full", func(t *testing.T) {
		l := newFlakyLedger()
		seedImportant(t, l, 10)
		ok, err := NewEnforcer(l, 10, logger.NewTestLogger(t), nil).Admit(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ledger unavailable fails open", func(t *testing.T) {
		l := newFlakyLedger()
		l.ListErr = errSheetsDown
		obs := newRecordingObserver()
		ok, err := NewEnforcer(l, 10, logger.NewTestLogger(t), obs).Admit(ctx)
		assert.True(t, ok)
		assert.ErrorIs(t, err, errSheetsDown)
		assert.Equal(t, 1, obs.LedgerErrors["list_important"])
	})
}

func TestNewEnforcer_DefaultCap(t *testing.T) {
	e := NewEnforcer(newFlakyLedger(), 0, nil, nil)
	assert.Equal(t, DefaultImportantCap, e.Cap())
}

func TestRecount(t *testing.T) {
	ctx := context.Background()
	l := newFlakyLedger()
	e := NewEnforcer(l, 3, logger.NewTestLogger(t), nil)
	seedImportant(t, l, 6)

	rows, err := e.Recount(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("existing %d", 5-i), r.Description)
	}

	n, err := e.CountImportant(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, domain.PriorityHigh, l.Rows()[5].Priority)
}

func TestRecount_StopsOnLedgerError(t *testing.T) {
	ctx := context.Background()
	l := newFlakyLedger()
	e := NewEnforcer(l, 1, logger.NewTestLogger(t), nil)
	seedImportant(t, l, 3)
	l.UpdateErr = errSheetsDown

	rows, err := e.Recount(ctx)
	assert.ErrorIs(t, err, errSheetsDown)
	assert.Empty(t, rows)
}
