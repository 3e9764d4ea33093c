package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// PostgresMessageStore implements store.MessageStore.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageStore creates a message store over db. If logger is nil, slog.Default() is used.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_store")),
	}
}

var _ store.MessageStore = (*PostgresMessageStore)(nil)

const messageColumns = `id, chat_id, message_id, author_username, author_name, text, sent_at, processed`

// Save implements store.MessageStore.Save.
func (s *PostgresMessageStore) Save(ctx context.Context, msg *domain.RawMessage) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := msg.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO raw_messages (chat_id, message_id, author_username, author_name, text, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id, message_id) DO NOTHING
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		msg.ChatID,
		msg.MessageID,
		msg.AuthorUsername,
		msg.AuthorName,
		msg.Text,
		msg.SentAt,
	).Scan(&msg.ID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("message already stored",
			slog.Int64("chat_id", msg.ChatID),
			slog.Int64("message_id", msg.MessageID))
		return false, nil
	}
	if err != nil {
		log.Error("failed to save message",
			slog.String("error", err.Error()),
			slog.Int64("chat_id", msg.ChatID))
		return false, MapError(err)
	}
	return true, nil
}

// FetchUnprocessed implements store.MessageStore.FetchUnprocessed.
func (s *PostgresMessageStore) FetchUnprocessed(
	ctx context.Context,
	chatID int64,
	since, until time.Time,
) ([]*domain.RawMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM raw_messages
		WHERE chat_id = $1 AND sent_at >= $2 AND sent_at < $3 AND NOT processed
		ORDER BY sent_at ASC, id ASC`
	return s.query(ctx, query, chatID, since.UTC(), until.UTC())
}

// FetchAll implements store.MessageStore.FetchAll.
func (s *PostgresMessageStore) FetchAll(
	ctx context.Context,
	chatID int64,
	since, until time.Time,
) ([]*domain.RawMessage, error) {
	query := `SELECT ` + messageColumns + `
		FROM raw_messages
		WHERE chat_id = $1 AND sent_at >= $2 AND sent_at < $3
		ORDER BY sent_at ASC, id ASC`
	return s.query(ctx, query, chatID, since.UTC(), until.UTC())
}

func (s *PostgresMessageStore) query(ctx context.Context, query string, args ...any) ([]*domain.RawMessage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query messages", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*domain.RawMessage
	for rows.Next() {
		var m domain.RawMessage
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.MessageID,
			&m.AuthorUsername,
			&m.AuthorName,
			&m.Text,
			&m.SentAt,
			&m.Processed,
		); err != nil {
			return nil, MapError(err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return msgs, nil
}

// MarkProcessed implements store.MessageStore.MarkProcessed.
func (s *PostgresMessageStore) MarkProcessed(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `UPDATE raw_messages SET processed = TRUE
		WHERE NOT processed AND id IN (` + placeholders(1, len(ids)) + `)`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to mark messages processed",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	log.Debug("messages marked processed", slog.Int64("updated", n), slog.Int("requested", len(ids)))
	return n, nil
}

// ListChatsWithUnprocessed implements store.MessageStore.ListChatsWithUnprocessed.
func (s *PostgresMessageStore) ListChatsWithUnprocessed(ctx context.Context, since, until time.Time) ([]int64, error) {
	query := `SELECT DISTINCT chat_id FROM raw_messages
		WHERE NOT processed AND sent_at >= $1 AND sent_at < $2
		ORDER BY chat_id`
	rows, err := s.db.QueryContext(ctx, query, since.UTC(), until.UTC())
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var chats []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		chats = append(chats, id)
	}
	return chats, MapError(rows.Err())
}

// WithTx implements store.MessageStore.WithTx.
func (s *PostgresMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return &PostgresMessageStore{db: tx, logger: s.logger}
}
