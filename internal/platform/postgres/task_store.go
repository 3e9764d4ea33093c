package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// PostgresTaskStore implements store.TaskStore.
// Source message ids are stored as a JSONB array.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a processed task store over db.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.ProcessedTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	ids := task.SourceMessageIDs
	if ids == nil {
		ids = []int64{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode source message ids: %w", err)
	}

	query := `
		INSERT INTO processed_tasks (chat_id, text, source_message_ids, extracted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, query,
		task.ChatID,
		task.Text,
		payload,
		task.ExtractedAt,
	).Scan(&task.ID); err != nil {
		log.Error("failed to create processed task",
			slog.String("error", err.Error()),
			slog.Int64("chat_id", task.ChatID))
		return MapError(err)
	}

	log.Debug("processed task created",
		slog.Int64("task_id", task.ID),
		slog.Int64("chat_id", task.ChatID),
		slog.Int("sources", len(ids)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.ProcessedTask, error) {
	query := `SELECT id, chat_id, text, source_message_ids, extracted_at
		FROM processed_tasks WHERE id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// ListByChat implements store.TaskStore.ListByChat.
func (s *PostgresTaskStore) ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.ProcessedTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, chat_id, text, source_message_ids, extracted_at
		FROM processed_tasks
		WHERE chat_id = $1
		ORDER BY extracted_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.ProcessedTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	return tasks, MapError(rows.Err())
}

// CountByChat implements store.TaskStore.CountByChat.
func (s *PostgresTaskStore) CountByChat(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_tasks WHERE chat_id = $1`, chatID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// DeleteByText implements store.TaskStore.DeleteByText.
func (s *PostgresTaskStore) DeleteByText(ctx context.Context, chatID int64, text string) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_tasks t
		WHERE t.chat_id = $1 AND t.text = $2
		  AND NOT EXISTS (SELECT 1 FROM pending_prioritization p WHERE p.task_id = t.id)`,
		chatID, text)
	if err != nil {
		log.Error("failed to delete processed tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	log.Debug("processed tasks deleted", slog.Int64("chat_id", chatID), slog.Int64("deleted", n))
	return n, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.ProcessedTask, error) {
	var (
		t   domain.ProcessedTask
		raw []byte
	)
	if err := row.Scan(&t.ID, &t.ChatID, &t.Text, &raw, &t.ExtractedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t.SourceMessageIDs); err != nil {
			return nil, fmt.Errorf("failed to decode source message ids: %w", err)
		}
	}
	return &t, nil
}
