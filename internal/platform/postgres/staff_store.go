package postgres

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// PostgresStaffStore implements store.StaffStore on the staff_members table.
type PostgresStaffStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStaffStore creates a staff store over db.
func NewPostgresStaffStore(db store.DBTX, logger *slog.Logger) *PostgresStaffStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStaffStore{
		db:     db,
		logger: logger.With(slog.String("component", "staff_store")),
	}
}

var _ store.StaffStore = (*PostgresStaffStore)(nil)

// IsStaff implements store.StaffStore.IsStaff. Usernames compare case-insensitively
// and without a leading "@".
func (s *PostgresStaffStore) IsStaff(ctx context.Context, userID int64, username string) (bool, error) {
	username = normalizeUsername(username)
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM staff_members
		WHERE user_id = $1 OR ($2 <> '' AND LOWER(username) = $2)
	)`, userID, username).Scan(&ok)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check staff membership",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return false, MapError(err)
	}
	return ok, nil
}

// Add implements store.StaffStore.Add.
func (s *PostgresStaffStore) Add(ctx context.Context, userID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staff_members (user_id, username) VALUES ($1, $2)`,
		userID, normalizeUsername(username))
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrStaffExists
		}
		return MapError(err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("staff member added", slog.Int64("user_id", userID))
	return nil
}

// Remove implements store.StaffStore.Remove.
func (s *PostgresStaffStore) Remove(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM staff_members WHERE user_id = $1`, userID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotFound)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
