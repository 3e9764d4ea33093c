// Package ledger defines the task ledger: the system of record for finalized
// (project, description, priority) rows. Rows are append-ordered and addressed
// by their 1-based row index, which shifts when an earlier row is deleted.
package ledger

import (
	"context"
	"errors"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// ErrUnavailable wraps every failure to reach or parse the ledger backend.
var ErrUnavailable = errors.New("task ledger unavailable")

// ErrRowNotFound is returned when a row index does not address a task row.
var ErrRowNotFound = errors.New("ledger row not found")

// Row is one task row of the ledger.
type Row struct {
	Index       int             `json:"row_index"`
	Project     string          `json:"project"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
}

// Ledger is the mutation surface the core needs.
type Ledger interface {
	// AppendRow adds a task row after the last one.
	AppendRow(ctx context.Context, project, description string, priority domain.Priority) error

	// ListImportantRows returns the important-tier rows in ledger order (oldest first).
	ListImportantRows(ctx context.Context) ([]Row, error)

	// UpdatePriority rewrites the priority cell of the row at rowIndex.
	UpdatePriority(ctx context.Context, rowIndex int, priority domain.Priority) error

	// DeleteRowByDescription deletes the first row whose description equals text
	// and returns its former index, or found=false when no row matched.
	DeleteRowByDescription(ctx context.Context, text string) (rowIndex int, found bool, err error)
}
