package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/batch"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
	"github.com/phrazzld/tasktracker/internal/service/prioritization"
	"github.com/phrazzld/tasktracker/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

type sent struct {
	ChatID int64
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type edit struct {
	ChatID    int64
	MessageID int64
	Text      string
	Markup    *telegram.InlineKeyboardMarkup
	// MarkupOnly is set for editMessageReplyMarkup.
	MarkupOnly bool
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	edits   []edit
	answers []string
	SendErr error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.sent = append(f.sent, sent{ChatID: chatID, Text: text, Markup: markup})
	return &telegram.Message{MessageID: int64(len(f.sent)), Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (f *fakeSender) EditMessageReplyMarkup(_ context.Context, chatID, messageID int64, markup *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ChatID: chatID, MessageID: messageID, Markup: markup, MarkupOnly: true})
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

type fakeDecider struct {
	SelectFn        func(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error)
	DowngradeFn     func(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error)
	KeepImportantFn func(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error)
	DemoteFn        func(ctx context.Context, id int64, p domain.Priority, row int) (prioritization.Resolution, error)
	DeleteFn        func(ctx context.Context, id int64) (prioritization.Resolution, error)
	ListPendingFn   func(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error)
	RecountFn       func(ctx context.Context) ([]ledger.Row, error)
}

func (f *fakeDecider) Select(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error) {
	return f.SelectFn(ctx, id, p)
}

func (f *fakeDecider) Downgrade(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error) {
	return f.DowngradeFn(ctx, id, p)
}

func (f *fakeDecider) KeepImportant(ctx context.Context, id int64, p domain.Priority) (prioritization.Resolution, error) {
	return f.KeepImportantFn(ctx, id, p)
}

func (f *fakeDecider) Demote(ctx context.Context, id int64, p domain.Priority, row int) (prioritization.Resolution, error) {
	return f.DemoteFn(ctx, id, p, row)
}

func (f *fakeDecider) Delete(ctx context.Context, id int64) (prioritization.Resolution, error) {
	return f.DeleteFn(ctx, id)
}

func (f *fakeDecider) ListPending(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error) {
	return f.ListPendingFn(ctx, chatID)
}

func (f *fakeDecider) Recount(ctx context.Context) ([]ledger.Row, error) {
	return f.RecountFn(ctx)
}

type fakeProcessor struct {
	NowFn   func(ctx context.Context, chatID int64) (batch.Result, error)
	RangeFn func(ctx context.Context, chatID int64, since, until time.Time) (batch.Result, error)
}

func (f *fakeProcessor) ProcessChatNow(ctx context.Context, chatID int64) (batch.Result, error) {
	return f.NowFn(ctx, chatID)
}

func (f *fakeProcessor) ProcessChatRange(ctx context.Context, chatID int64, since, until time.Time) (batch.Result, error) {
	return f.RangeFn(ctx, chatID, since, until)
}

// syncJobs runs submitted work immediately.
type syncJobs struct {
	types []string
	Err   error
}

func (j *syncJobs) Submit(ctx context.Context, taskType string, fn func(ctx context.Context) (string, error)) (uuid.UUID, error) {
	if j.Err != nil {
		return uuid.Nil, j.Err
	}
	j.types = append(j.types, taskType)
	_, _ = fn(ctx)
	return uuid.New(), nil
}

type staffIDs map[int64]bool

func (s staffIDs) IsStaff(_ context.Context, userID int64, _ string) bool { return s[userID] }

type ingestCounter struct{ n int }

func (c *ingestCounter) ObserveIngested() { c.n++ }

const (
	groupID   int64 = -1001
	staffID   int64 = 1
	clientID  int64 = 2
	promptMsg int64 = 50
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	bot       *Bot
	sender    *fakeSender
	decider   *fakeDecider
	processor *fakeProcessor
	jobs      *syncJobs
	db        *memstore.DB
	ingested  *ingestCounter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sender:    &fakeSender{},
		decider:   &fakeDecider{},
		processor: &fakeProcessor{},
		jobs:      &syncJobs{},
		db:        memstore.New(),
		ingested:  &ingestCounter{},
	}
	st := h.db.Stores()
	b, err := New(Deps{
		Sender:    h.sender,
		Decider:   h.decider,
		Processor: h.processor,
		Jobs:      h.jobs,
		Staff:     staffIDs{staffID: true},
		Messages:  st.Messages,
		Tasks:     st.Tasks,
		Observer:  h.ingested,
		Now:       func() time.Time { return fixedNow },
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	h.bot = b
	return h
}

func groupMessage(from int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: from, FirstName: "Анна", Username: "anna"},
			Chat:      telegram.Chat{ID: groupID, Type: telegram.ChatTypeSupergroup},
			Date:      fixedNow.Unix(),
			Text:      text,
		},
	}
}

func press(from int64, data string) telegram.Update {
	return telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb",
			From: telegram.User{ID: from},
			Data: data,
			Message: &telegram.Message{
				MessageID: promptMsg,
				Chat:      telegram.Chat{ID: groupID, Type: telegram.ChatTypeSupergroup},
			},
		},
	}
}
