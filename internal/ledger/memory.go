package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// firstDataRow is the index of the first task row; row 1 holds the header.
const firstDataRow = 2

// Memory is an in-process Ledger. It is used for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	rows []Row
}

var _ Ledger = (*Memory)(nil)

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// AppendRow implements Ledger.
func (m *Memory) AppendRow(ctx context.Context, project, description string, priority domain.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("append row: %w", domain.ErrInvalidPriority)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, Row{Project: project, Description: description, Priority: priority})
	m.reindex()
	return nil
}

// ListImportantRows implements Ledger.
func (m *Memory) ListImportantRows(ctx context.Context) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Row
	for _, r := range m.rows {
		if r.Priority.IsImportant() {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdatePriority implements Ledger.
func (m *Memory) UpdatePriority(ctx context.Context, rowIndex int, priority domain.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("update priority: %w", domain.ErrInvalidPriority)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := rowIndex - firstDataRow
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("%w: %d", ErrRowNotFound, rowIndex)
	}
	m.rows[i].Priority = priority
	return nil
}

// DeleteRowByDescription implements Ledger.
func (m *Memory) DeleteRowByDescription(ctx context.Context, text string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.Description == text {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			m.reindex()
			return r.Index, true, nil
		}
	}
	return 0, false, nil
}

// Rows returns a copy of every task row in ledger order.
func (m *Memory) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}

func (m *Memory) reindex() {
	for i := range m.rows {
		m.rows[i].Index = firstDataRow + i
	}
}
