package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// PostgresPendingStore implements store.PendingStore.
type PostgresPendingStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPendingStore creates a pending prioritization store over db.
func NewPostgresPendingStore(db store.DBTX, logger *slog.Logger) *PostgresPendingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPendingStore{
		db:     db,
		logger: logger.With(slog.String("component", "pending_store")),
	}
}

var _ store.PendingStore = (*PostgresPendingStore)(nil)

const pendingColumns = `id, chat_id, task_id, text, selected_priority, claimed, created_at`

// Create implements store.PendingStore.Create.
func (s *PostgresPendingStore) Create(ctx context.Context, p *domain.PendingPrioritization) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO pending_prioritization (chat_id, task_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	taskID := sql.NullInt64{Int64: p.TaskID, Valid: p.TaskID != 0}
	if err := s.db.QueryRowContext(ctx, query, p.ChatID, taskID, p.Text, p.CreatedAt).Scan(&p.ID); err != nil {
		log.Error("failed to create pending record",
			slog.String("error", err.Error()),
			slog.Int64("chat_id", p.ChatID))
		return MapError(err)
	}
	log.Debug("pending record created",
		slog.Int64("pending_id", p.ID),
		slog.Int64("task_id", p.TaskID))
	return nil
}

// Get implements store.PendingStore.Get.
func (s *PostgresPendingStore) Get(ctx context.Context, id int64) (*domain.PendingPrioritization, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_prioritization WHERE id = $1`
	p, err := scanPending(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPendingNotFound
		}
		return nil, MapError(err)
	}
	return p, nil
}

// Claim implements store.PendingStore.Claim.
func (s *PostgresPendingStore) Claim(
	ctx context.Context,
	id int64,
	priority domain.Priority,
) (*domain.PendingPrioritization, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if priority != "" && !priority.Valid() {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidPriority)
	}

	query := `UPDATE pending_prioritization
		SET claimed = TRUE, selected_priority = NULLIF($2, '')
		WHERE id = $1 AND NOT claimed
		RETURNING ` + pendingColumns
	p, err := scanPending(s.db.QueryRowContext(ctx, query, id, string(priority)))
	if err == nil {
		log.Debug("pending record claimed",
			slog.Int64("pending_id", id),
			slog.String("priority", string(priority)))
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to claim pending record",
			slog.String("error", err.Error()),
			slog.Int64("pending_id", id))
		return nil, MapError(err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pending_prioritization WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, MapError(err)
	}
	if exists {
		return nil, store.ErrPendingClaimed
	}
	return nil, store.ErrPendingNotFound
}

// Release implements store.PendingStore.Release.
func (s *PostgresPendingStore) Release(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pending_prioritization SET claimed = FALSE WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrPendingNotFound)
}

// Delete implements store.PendingStore.Delete.
func (s *PostgresPendingStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_prioritization WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete pending record",
			slog.String("error", err.Error()),
			slog.Int64("pending_id", id))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrPendingNotFound)
}

// ListByChat implements store.PendingStore.ListByChat.
func (s *PostgresPendingStore) ListByChat(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_prioritization
		WHERE chat_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.PendingPrioritization
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, p)
	}
	return out, MapError(rows.Err())
}

// WithTx implements store.PendingStore.WithTx.
func (s *PostgresPendingStore) WithTx(tx *sql.Tx) store.PendingStore {
	return &PostgresPendingStore{db: tx, logger: s.logger}
}

func scanPending(row rowScanner) (*domain.PendingPrioritization, error) {
	var (
		p        domain.PendingPrioritization
		taskID   sql.NullInt64
		priority sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ChatID, &taskID, &p.Text, &priority, &p.Claimed, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.TaskID = taskID.Int64
	p.SelectedPriority = domain.Priority(priority.String)
	return &p, nil
}
