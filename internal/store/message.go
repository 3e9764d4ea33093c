package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// MessageStore defines the interface for raw chat message persistence.
type MessageStore interface {
	// Save stores a message. Saving the same (chat_id, message_id) twice is a no-op
	// that reports inserted=false.
	Save(ctx context.Context, msg *domain.RawMessage) (inserted bool, err error)

	// FetchUnprocessed returns unprocessed messages of chatID with since <= sent_at < until,
	// oldest first.
	FetchUnprocessed(ctx context.Context, chatID int64, since, until time.Time) ([]*domain.RawMessage, error)

	// FetchAll is FetchUnprocessed without the processed filter. Used for backfill.
	FetchAll(ctx context.Context, chatID int64, since, until time.Time) ([]*domain.RawMessage, error)

	// MarkProcessed flags the given messages as processed and returns how many changed.
	// Messages already processed are not counted.
	MarkProcessed(ctx context.Context, ids []int64) (int64, error)

	// ListChatsWithUnprocessed returns the distinct chat ids having at least one
	// unprocessed message with since <= sent_at < until.
	ListChatsWithUnprocessed(ctx context.Context, since, until time.Time) ([]int64, error)

	// WithTx returns a MessageStore bound to tx.
	WithTx(tx *sql.Tx) MessageStore
}

// TaskStore defines the interface for extracted task persistence.
type TaskStore interface {
	// Create saves a new processed task and sets its ID.
	Create(ctx context.Context, task *domain.ProcessedTask) error

	// GetByID returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.ProcessedTask, error)

	// ListByChat returns tasks of chatID newest first.
	ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.ProcessedTask, error)

	// CountByChat returns the number of tasks stored for chatID.
	CountByChat(ctx context.Context, chatID int64) (int, error)

	// DeleteByText removes every task of chatID whose text matches exactly,
	// except tasks that an open pending record still references: those keep
	// the source message ids the record needs when it is resolved.
	DeleteByText(ctx context.Context, chatID int64, text string) (int64, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}

// PendingStore defines the interface for pending prioritization records.
//
// Claim and Release implement a single-winner hand-off: a callback claims a record
// before touching the ledger, so a double click or a second operator loses the race
// with ErrPendingClaimed instead of appending the same task twice.
type PendingStore interface {
	// Create saves a new open pending record and sets its ID.
	Create(ctx context.Context, p *domain.PendingPrioritization) error

	// Get returns ErrPendingNotFound if the record does not exist.
	Get(ctx context.Context, id int64) (*domain.PendingPrioritization, error)

	// Claim marks an unclaimed record as claimed with the selected priority.
	// An empty priority claims the record without selecting one, as a
	// rejection does. Returns ErrPendingNotFound or ErrPendingClaimed.
	Claim(ctx context.Context, id int64, priority domain.Priority) (*domain.PendingPrioritization, error)

	// Release returns a claimed record to the open state.
	Release(ctx context.Context, id int64) error

	// Delete removes the record. Returns ErrPendingNotFound if it was already gone.
	Delete(ctx context.Context, id int64) error

	// ListByChat returns the pending records of chatID oldest first.
	ListByChat(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error)

	// WithTx returns a PendingStore bound to tx.
	WithTx(tx *sql.Tx) PendingStore
}

// StaffStore defines the interface for the staff allow-list table.
type StaffStore interface {
	// IsStaff reports whether the user id or the username is registered.
	IsStaff(ctx context.Context, userID int64, username string) (bool, error)

	// Add registers a staff member. Returns ErrStaffExists for a repeat.
	Add(ctx context.Context, userID int64, username string) error

	// Remove deletes a staff member by user id.
	Remove(ctx context.Context, userID int64) error
}
