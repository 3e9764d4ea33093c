package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/batch"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
	"github.com/phrazzld/tasktracker/internal/service/prioritization"
	"github.com/phrazzld/tasktracker/internal/store"
)

// Sender is the part of the Telegram client the bot uses.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Decider resolves pending prioritization records. *prioritization.Service satisfies it.
type Decider interface {
	Select(ctx context.Context, pendingID int64, p domain.Priority) (prioritization.Resolution, error)
	Downgrade(ctx context.Context, pendingID int64, p domain.Priority) (prioritization.Resolution, error)
	KeepImportant(ctx context.Context, pendingID int64, p domain.Priority) (prioritization.Resolution, error)
	Demote(ctx context.Context, pendingID int64, p domain.Priority, rowIndex int) (prioritization.Resolution, error)
	Delete(ctx context.Context, pendingID int64) (prioritization.Resolution, error)
	ListPending(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error)
	Recount(ctx context.Context) ([]ledger.Row, error)
}

// Processor runs the extraction pipeline for one chat. *batch.Processor satisfies it.
type Processor interface {
	ProcessChatNow(ctx context.Context, chatID int64) (batch.Result, error)
	ProcessChatRange(ctx context.Context, chatID int64, since, until time.Time) (batch.Result, error)
}

// Jobs runs work off the update loop. *task.TaskRunner satisfies it.
type Jobs interface {
	Submit(ctx context.Context, taskType string, fn func(ctx context.Context) (string, error)) (uuid.UUID, error)
}

// StaffChecker decides whether a user may run operator actions.
type StaffChecker interface {
	IsStaff(ctx context.Context, userID int64, username string) bool
}

// IngestObserver counts stored messages. *observability.Metrics satisfies it.
type IngestObserver interface {
	ObserveIngested()
}

// Deps are the collaborators of a Bot. Observer, Location and Now are optional.
type Deps struct {
	Sender    Sender
	Decider   Decider
	Processor Processor
	Jobs      Jobs
	Staff     StaffChecker
	Messages  store.MessageStore
	Tasks     store.TaskStore
	Prompter  *Prompter

	Observer IngestObserver
	Location *time.Location
	Now      func() time.Time
}

// Bot handles Telegram updates.
//
// HandleUpdate runs on the poll goroutine, one update at a time. Anything
// that may call the language model is submitted to Jobs instead, so button
// presses keep being answered while a chat is being processed. Replies and
// prompt edits are best effort: a failed send is logged and the update is
// considered handled.
type Bot struct {
	sender    Sender
	decider   Decider
	processor Processor
	jobs      Jobs
	staff     StaffChecker
	messages  store.MessageStore
	tasks     store.TaskStore
	prompter  *Prompter
	observer  IngestObserver
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

type nopIngestObserver struct{}

func (nopIngestObserver) ObserveIngested() {}

// New creates a Bot from d. Sender, Decider, Processor, Jobs, Staff and both
// stores are required. A nil Prompter is built on Sender, a nil Location
// means UTC and a nil Now means time.Now.
func New(d Deps, log *slog.Logger) (*Bot, error) {
	switch {
	case d.Sender == nil:
		return nil, errors.New("bot: sender cannot be nil")
	case d.Decider == nil:
		return nil, errors.New("bot: decider cannot be nil")
	case d.Processor == nil:
		return nil, errors.New("bot: processor cannot be nil")
	case d.Jobs == nil:
		return nil, errors.New("bot: jobs cannot be nil")
	case d.Staff == nil:
		return nil, errors.New("bot: staff checker cannot be nil")
	case d.Messages == nil || d.Tasks == nil:
		return nil, errors.New("bot: stores cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		sender:    d.Sender,
		decider:   d.Decider,
		processor: d.Processor,
		jobs:      d.Jobs,
		staff:     d.Staff,
		messages:  d.Messages,
		tasks:     d.Tasks,
		prompter:  d.Prompter,
		observer:  d.Observer,
		loc:       d.Location,
		now:       d.Now,
		logger:    log.With("component", "bot"),
	}
	if b.prompter == nil {
		b.prompter = NewPrompter(d.Sender, log)
	}
	if b.observer == nil {
		b.observer = nopIngestObserver{}
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// HandleUpdate dispatches one update. Failures are logged; nothing is returned
// because the update loop must keep going.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	log := b.logger.With("update_id", u.UpdateID)
	ctx = logger.WithLogger(ctx, log)

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		if cmd, args, ok := parseCommand(u.Message.Text); ok {
			b.handleCommand(ctx, u.Message, cmd, args)
			return
		}
		b.ingest(ctx, u.Message)
	}
}

// ingest stores a client message from a group chat.
func (b *Bot) ingest(ctx context.Context, m *telegram.Message) {
	if m.Text == "" || m.From == nil || m.From.IsBot || !m.Chat.IsGroup() {
		return
	}
	log := logger.FromContextOrDefault(ctx, b.logger).With("chat_id", m.Chat.ID, "message_id", m.MessageID)
	if b.staff.IsStaff(ctx, m.From.ID, m.From.Username) {
		log.Debug("ignoring staff message", "user_id", m.From.ID)
		return
	}

	name := m.From.FirstName
	msg, err := domain.NewRawMessage(m.Chat.ID, m.MessageID, m.From.Username, name, m.Text, m.Time())
	if err != nil {
		log.Warn("invalid message", "error", err)
		return
	}
	inserted, err := b.messages.Save(ctx, msg)
	if err != nil {
		log.Error("failed to save raw message", "error", err)
		return
	}
	if inserted {
		b.observer.ObserveIngested()
		log.Info("raw message saved", "text_len", len(m.Text))
	}
}

// reply sends text to chatID in chunks the API accepts, retrying each chunk once.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	log := logger.FromContextOrDefault(ctx, b.logger).With("chat_id", chatID)
	for _, part := range chunk(text, telegram.MaxMessageLength) {
		if _, err := b.sender.SendMessage(ctx, chatID, part, nil); err != nil {
			log.Warn("send failed, retrying once", "error", err)
			if _, err := b.sender.SendMessage(ctx, chatID, part, nil); err != nil {
				log.Error("send retry failed", "error", err)
				return
			}
		}
	}
}

// submit runs fn as a job of taskType with the caller's logger. fn sends its
// own reply; the returned text is kept as the job result. A queue that
// rejects the job is reported to the chat right away.
func (b *Bot) submit(ctx context.Context, chatID int64, taskType string, fn func(ctx context.Context) (string, error)) {
	id, err := b.jobs.Submit(ctx, taskType, func(jobCtx context.Context) (string, error) {
		return fn(logger.WithLogger(jobCtx, logger.FromContextOrDefault(ctx, b.logger)))
	})
	log := logger.FromContextOrDefault(ctx, b.logger)
	if err != nil {
		log.Error("failed to submit job", "task_type", taskType, "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, "Сервер занят, попробуйте позже.")
		return
	}
	log.Info("job submitted", "task_type", taskType, "task_id", id.String(), "chat_id", chatID)
}

