// Package memstore provides in-memory implementations of the store interfaces.
// They back unit tests of the pipeline packages and honor the same contracts
// as the PostgreSQL stores: idempotent message saves, single-winner claims and
// not-found errors for missing records.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/store"
)

// DB holds every table. Its stores share one mutex.
type DB struct {
	mu sync.Mutex

	nextID   int64
	messages []*domain.RawMessage
	tasks    []*domain.ProcessedTask
	pending  map[int64]*domain.PendingPrioritization
	staff    map[int64]string

	// TxCalls counts InTx invocations.
	TxCalls int
}

// New returns an empty database.
func New() *DB {
	return &DB{
		pending: make(map[int64]*domain.PendingPrioritization),
		staff:   make(map[int64]string),
	}
}

// Stores returns the pipeline stores of db.
func (db *DB) Stores() store.Stores {
	return store.Stores{
		Messages: &MessageStore{db: db},
		Tasks:    &TaskStore{db: db},
		Pending:  &PendingStore{db: db},
	}
}

// InTx implements store.Transactor without isolation or rollback.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	db.mu.Lock()
	db.TxCalls++
	db.mu.Unlock()
	return fn(ctx, db.Stores())
}

var _ store.Transactor = (*DB)(nil)

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

// MessageStore implements store.MessageStore.
type MessageStore struct{ db *DB }

var _ store.MessageStore = (*MessageStore)(nil)

// Save implements store.MessageStore.
func (s *MessageStore) Save(ctx context.Context, msg *domain.RawMessage) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.messages {
		if m.ChatID == msg.ChatID && m.MessageID == msg.MessageID {
			return false, nil
		}
	}
	msg.ID = s.db.id()
	cp := *msg
	s.db.messages = append(s.db.messages, &cp)
	return true, nil
}

func (s *MessageStore) fetch(chatID int64, since, until time.Time, unprocessedOnly bool) []*domain.RawMessage {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.RawMessage
	for _, m := range s.db.messages {
		if m.ChatID != chatID || m.SentAt.Before(since) || !m.SentAt.Before(until) {
			continue
		}
		if unprocessedOnly && m.Processed {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out
}

// FetchUnprocessed implements store.MessageStore.
func (s *MessageStore) FetchUnprocessed(ctx context.Context, chatID int64, since, until time.Time) ([]*domain.RawMessage, error) {
	return s.fetch(chatID, since, until, true), nil
}

// FetchAll implements store.MessageStore.
func (s *MessageStore) FetchAll(ctx context.Context, chatID int64, since, until time.Time) ([]*domain.RawMessage, error) {
	return s.fetch(chatID, since, until, false), nil
}

// MarkProcessed implements store.MessageStore.
func (s *MessageStore) MarkProcessed(ctx context.Context, ids []int64) (int64, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, m := range s.db.messages {
		if want[m.ID] && !m.Processed {
			m.Processed = true
			n++
		}
	}
	return n, nil
}

// ListChatsWithUnprocessed implements store.MessageStore.
func (s *MessageStore) ListChatsWithUnprocessed(ctx context.Context, since, until time.Time) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, m := range s.db.messages {
		if m.Processed || m.SentAt.Before(since) || !m.SentAt.Before(until) || seen[m.ChatID] {
			continue
		}
		seen[m.ChatID] = true
		out = append(out, m.ChatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// WithTx implements store.MessageStore.
func (s *MessageStore) WithTx(*sql.Tx) store.MessageStore { return s }

// Messages returns a snapshot of every stored message.
func (db *DB) Messages() []domain.RawMessage {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.RawMessage, len(db.messages))
	for i, m := range db.messages {
		out[i] = *m
	}
	return out
}

// TaskStore implements store.TaskStore.
type TaskStore struct{ db *DB }

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.ProcessedTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	task.ID = s.db.id()
	cp := *task
	cp.SourceMessageIDs = append([]int64(nil), task.SourceMessageIDs...)
	s.db.tasks = append(s.db.tasks, &cp)
	return nil
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*domain.ProcessedTask, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// ListByChat implements store.TaskStore.
func (s *TaskStore) ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.ProcessedTask, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []*domain.ProcessedTask
	for i := len(s.db.tasks) - 1; i >= 0; i-- {
		if t := s.db.tasks[i]; t.ChatID == chatID {
			cp := *t
			all = append(all, &cp)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CountByChat implements store.TaskStore.
func (s *TaskStore) CountByChat(ctx context.Context, chatID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, t := range s.db.tasks {
		if t.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

// DeleteByText implements store.TaskStore.
func (s *TaskStore) DeleteByText(ctx context.Context, chatID int64, text string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	kept := s.db.tasks[:0]
	var n int64
	referenced := make(map[int64]bool, len(s.db.pending))
	for _, p := range s.db.pending {
		if p.TaskID != 0 {
			referenced[p.TaskID] = true
		}
	}
	for _, t := range s.db.tasks {
		if t.ChatID == chatID && t.Text == text && !referenced[t.ID] {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.db.tasks = kept
	return n, nil
}

// WithTx implements store.TaskStore.
func (s *TaskStore) WithTx(*sql.Tx) store.TaskStore { return s }

// PendingStore implements store.PendingStore.
type PendingStore struct{ db *DB }

var _ store.PendingStore = (*PendingStore)(nil)

// Create implements store.PendingStore.
func (s *PendingStore) Create(ctx context.Context, p *domain.PendingPrioritization) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p.ID = s.db.id()
	cp := *p
	s.db.pending[p.ID] = &cp
	return nil
}

// Get implements store.PendingStore.
func (s *PendingStore) Get(ctx context.Context, id int64) (*domain.PendingPrioritization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.pending[id]
	if !ok {
		return nil, store.ErrPendingNotFound
	}
	cp := *p
	return &cp, nil
}

// Claim implements store.PendingStore.
func (s *PendingStore) Claim(ctx context.Context, id int64, priority domain.Priority) (*domain.PendingPrioritization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.pending[id]
	if !ok {
		return nil, store.ErrPendingNotFound
	}
	if p.Claimed {
		return nil, store.ErrPendingClaimed
	}
	p.Claimed = true
	p.SelectedPriority = priority
	cp := *p
	return &cp, nil
}

// Release implements store.PendingStore.
func (s *PendingStore) Release(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.pending[id]
	if !ok {
		return store.ErrPendingNotFound
	}
	p.Claimed = false
	return nil
}

// Delete implements store.PendingStore.
func (s *PendingStore) Delete(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.pending[id]; !ok {
		return store.ErrPendingNotFound
	}
	delete(s.db.pending, id)
	return nil
}

// ListByChat implements store.PendingStore.
func (s *PendingStore) ListByChat(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.PendingPrioritization
	for _, p := range s.db.pending {
		if p.ChatID == chatID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WithTx implements store.PendingStore.
func (s *PendingStore) WithTx(*sql.Tx) store.PendingStore { return s }

// StaffStore implements store.StaffStore.
type StaffStore struct{ db *DB }

// Staff returns the staff table of db.
func (db *DB) Staff() *StaffStore { return &StaffStore{db: db} }

var _ store.StaffStore = (*StaffStore)(nil)

// IsStaff implements store.StaffStore.
func (s *StaffStore) IsStaff(ctx context.Context, userID int64, username string) (bool, error) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.staff[userID]; ok {
		return true, nil
	}
	for _, name := range s.db.staff {
		if username != "" && name == username {
			return true, nil
		}
	}
	return false, nil
}

// Add implements store.StaffStore.
func (s *StaffStore) Add(ctx context.Context, userID int64, username string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.staff[userID]; ok {
		return store.ErrStaffExists
	}
	s.db.staff[userID] = strings.ToLower(strings.TrimPrefix(username, "@"))
	return nil
}

// Remove implements store.StaffStore.
func (s *StaffStore) Remove(ctx context.Context, userID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.staff[userID]; !ok {
		return store.ErrNotFound
	}
	delete(s.db.staff, userID)
	return nil
}
