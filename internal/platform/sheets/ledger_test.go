package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridClient is an in-memory worksheet.
type gridClient struct {
	exists  bool
	grid    [][]string
	err     error
	ensured int
}

func (g *gridClient) Values(ctx context.Context) ([][]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]string, len(g.grid))
	for i, r := range g.grid {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (g *gridClient) AppendRow(ctx context.Context, row []string) error {
	if g.err != nil {
		return g.err
	}
	g.grid = append(g.grid, append([]string(nil), row...))
	return nil
}

func (g *gridClient) UpdateCell(ctx context.Context, row, col int, value string) error {
	if g.err != nil {
		return g.err
	}
	r := g.grid[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	g.grid[row-1] = r
	return nil
}

func (g *gridClient) DeleteRow(ctx context.Context, row int) error {
	if g.err != nil {
		return g.err
	}
	g.grid = append(g.grid[:row-1], g.grid[row:]...)
	return nil
}

func (g *gridClient) EnsureWorksheet(ctx context.Context, header []string) error {
	g.ensured++
	if g.err != nil {
		return g.err
	}
	if !g.exists {
		g.exists = true
		g.grid = append(g.grid, header)
	}
	return nil
}

func TestAppendCreatesStudioWorksheet(t *testing.T) {
	grid := &gridClient{}
	l := newLedger(grid, nil)
	ctx := context.Background()

	require.NoError(t, l.AppendRow(ctx, "Shop", "Добавить темную тему", domain.PriorityHigh))
	require.NoError(t, l.AppendRow(ctx, "Shop", "Поправить футер", domain.PriorityLow))

	require.Len(t, grid.grid, 3)
	assert.Equal(t, StudioHeader, grid.grid[0])
	assert.Equal(t, []string{"Shop", "Добавить темную тему", "ToDo", "", "High", "", "Unplanned"}, grid.grid[1])
	assert.Equal(t, 1, grid.ensured)
}

func TestAppendFollowsHeaderOrder(t *testing.T) {
	grid := &gridClient{exists: true, grid: [][]string{{"Задача", "Приоритет", "Проект"}}}
	l := newLedger(grid, nil)

	require.NoError(t, l.AppendRow(context.Background(), "Shop", "task", domain.PriorityBlocker))
	assert.Equal(t, []string{"task", "Blocker", "Shop"}, grid.grid[1])
}

func TestAppendMinimalLayout(t *testing.T) {
	grid := &gridClient{exists: true, grid: [][]string{{"Title", "Priority", "CreatedAt"}}}
	l := newLedger(grid, nil)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, l.AppendRow(context.Background(), "ignored", "task", domain.PriorityMedium))
	assert.Equal(t, []string{"task", "Medium", "2024-05-01T12:00:00Z"}, grid.grid[1])
}

func TestListImportantRows(t *testing.T) {
	grid := &gridClient{exists: true, grid: [][]string{
		StudioHeader,
		{"A", "one", "ToDo", "", "High", "", "Unplanned"},
		{"A", "two", "ToDo", "", "Medium", "", "Unplanned"},
		{"B", "three", "ToDo", "", "CRITICAL", "", "Unplanned"},
		{"B", "four"},
		{"B", "five", "ToDo", "", "blocker"},
	}}
	l := newLedger(grid, nil)

	rows, err := l.ListImportantRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ledger.Row{Index: 2, Project: "A", Description: "one", Priority: domain.PriorityHigh}, rows[0])
	assert.Equal(t, 4, rows[1].Index)
	assert.Equal(t, domain.PriorityBlocker, rows[2].Priority)
	assert.Equal(t, 6, rows[2].Index)
}

func TestUpdatePriority(t *testing.T) {
	grid := &gridClient{exists: true, grid: [][]string{
		{"Title", "Priority", "CreatedAt"},
		{"one", "High", "x"},
	}}
	l := newLedger(grid, nil)

	require.NoError(t, l.UpdatePriority(context.Background(), 2, domain.PriorityMedium))
	assert.Equal(t, "Medium", grid.grid[1][1])
	assert.ErrorIs(t, l.UpdatePriority(context.Background(), 1, domain.PriorityMedium), ledger.ErrRowNotFound)
}

func TestDeleteRowByDescription(t *testing.T) {
	grid := &gridClient{exists: true, grid: [][]string{
		StudioHeader,
		{"A", "one"},
		{"A", "two"},
		{"A", "two"},
	}}
	l := newLedger(grid, nil)

	idx, found, err := l.DeleteRowByDescription(context.Background(), "two")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, idx)
	assert.Len(t, grid.grid, 3)

	_, found, err = l.DeleteRowByDescription(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFailuresWrapUnavailable(t *testing.T) {
	grid := &gridClient{err: errors.New("403 forbidden")}
	l := newLedger(grid, nil)
	ctx := context.Background()

	assert.ErrorIs(t, l.AppendRow(ctx, "", "x", domain.PriorityLow), ledger.ErrUnavailable)
	_, err := l.ListImportantRows(ctx)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	_, _, err = l.DeleteRowByDescription(ctx, "x")
	assert.ErrorIs(t, err, ledger.ErrUnavailable)

	// ensure is retried after a failure
	grid.err = nil
	require.NoError(t, l.AppendRow(ctx, "", "x", domain.PriorityLow))
	assert.Equal(t, 4, grid.ensured)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "E", columnName(5))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
}
