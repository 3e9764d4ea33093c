package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// DefaultWindow is the trailing window considered by the hourly pass.
const DefaultWindow = time.Hour

// ErrInvalidRange is returned when since is not before until.
var ErrInvalidRange = errors.New("invalid time range")

// Extractor turns a chronological message window into task strings.
type Extractor interface {
	Extract(ctx context.Context, msgs []*domain.RawMessage) ([]string, error)
}

// Queue opens pending prioritization records.
type Queue interface {
	Enqueue(ctx context.Context, task *domain.ProcessedTask) (*domain.PendingPrioritization, error)
}

// Prompter delivers the priority-selection prompt of a pending record.
type Prompter interface {
	PromptPriority(ctx context.Context, p *domain.PendingPrioritization) error
}

// Observer receives pass and extraction bookkeeping. *observability.Metrics satisfies it.
type Observer interface {
	ObservePass(d time.Duration, failures int)
}

type nopObserver struct{}

func (nopObserver) ObservePass(time.Duration, int) {}

// Result describes one per-chat pipeline run.
type Result struct {
	ChatID   int64
	Since    time.Time
	Until    time.Time
	Messages int
	Pending  []*domain.PendingPrioritization
	// PromptFailures counts prompts that could not be delivered. The records
	// stay open and can be re-sent.
	PromptFailures int
}

// Tasks reports how many tasks the run produced.
func (r Result) Tasks() int { return len(r.Pending) }

// PassResult summarizes an hourly pass.
type PassResult struct {
	// ID correlates the pass's log lines.
	ID string
	// Chats is the number of chats with unprocessed messages in the window.
	Chats int
	// Tasks is the number of pending records opened across all chats.
	Tasks int
	// Failures counts chats whose pipeline returned an error.
	Failures int
	// Skipped is set when another pass was still running.
	Skipped bool
}

// Processor runs the pipeline. It is safe for concurrent use: at most one
// hourly pass runs at a time and a chat is never processed concurrently with itself.
type Processor struct {
	messages  store.MessageStore
	tasks     store.TaskStore
	extractor Extractor
	queue     Queue
	prompter  Prompter
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer

	passMu sync.Mutex

	locksMu   sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithWindow sets the trailing window length. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithObserver sets the pass observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewProcessor creates a Processor.
func NewProcessor(
	messages store.MessageStore,
	tasks store.TaskStore,
	extractor Extractor,
	queue Queue,
	prompter Prompter,
	log *slog.Logger,
	opts ...Option,
) *Processor {
	if messages == nil || tasks == nil || extractor == nil || queue == nil || prompter == nil {
		panic("batch processor dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Processor{
		messages:  messages,
		tasks:     tasks,
		extractor: extractor,
		queue:     queue,
		prompter:  prompter,
		window:    DefaultWindow,
		now:       time.Now,
		logger:    log.With("component", "batch_processor"),
		observer:  nopObserver{},
		chatLocks: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunHourlyPass processes every chat with unprocessed messages in the trailing
// window. A pass started while another is running returns immediately with
// Skipped set. Per-chat failures are logged and counted, never returned.
func (p *Processor) RunHourlyPass(ctx context.Context) (PassResult, error) {
	res := PassResult{ID: uuid.NewString()}
	log := p.logger.With("pass_id", res.ID)

	if !p.passMu.TryLock() {
		log.Info("previous pass still running, skipping")
		res.Skipped = true
		return res, nil
	}
	defer p.passMu.Unlock()

	start := p.now()
	until := start.UTC()
	since := until.Add(-p.window)

	chats, err := p.messages.ListChatsWithUnprocessed(ctx, since, until)
	if err != nil {
		return res, fmt.Errorf("list chats with unprocessed messages: %w", err)
	}
	res.Chats = len(chats)
	log.Info("hourly pass started", "chats", len(chats), "since", since, "until", until)

	ctx = logger.WithLogger(ctx, log)
	for _, chatID := range chats {
		if err := ctx.Err(); err != nil {
			log.Warn("hourly pass interrupted", "error", err)
			break
		}
		r, err := p.run(ctx, chatID, since, until, false)
		if err != nil {
			res.Failures++
			log.Error("chat processing failed", "chat_id", chatID, "error", err)
			continue
		}
		res.Tasks += r.Tasks()
	}

	d := p.now().Sub(start)
	p.observer.ObservePass(d, res.Failures)
	log.Info("hourly pass finished",
		"chats", res.Chats,
		"tasks", res.Tasks,
		"failures", res.Failures,
		"duration_ms", d.Milliseconds())
	return res, ctx.Err()
}

// ProcessChatNow processes the trailing window of one chat immediately. Only
// unprocessed messages are read. Messages whose batch still has open prompts
// are unprocessed as well, so they take part in the extraction again.
func (p *Processor) ProcessChatNow(ctx context.Context, chatID int64) (Result, error) {
	until := p.now().UTC()
	return p.run(ctx, chatID, until.Add(-p.window), until, false)
}

// ProcessChatRange re-extracts tasks from every message of chatID with
// since <= sent_at < until, processed or not.
func (p *Processor) ProcessChatRange(ctx context.Context, chatID int64, since, until time.Time) (Result, error) {
	if !since.Before(until) {
		return Result{ChatID: chatID}, fmt.Errorf("%w: %s is not before %s", ErrInvalidRange, since, until)
	}
	return p.run(ctx, chatID, since.UTC(), until.UTC(), true)
}

// chatLock returns the mutex serializing runs of chatID. Locks are never
// removed; the set of chats a bot serves is small.
func (p *Processor) chatLock(chatID int64) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	mu, ok := p.chatLocks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		p.chatLocks[chatID] = mu
	}
	return mu
}

// run is the pipeline shared by every entry point. With all set it reads
// every message in the window, otherwise only unprocessed ones. Each task
// string gets a ProcessedTask carrying the whole batch's ids, a pending
// record and a prompt. A failed prompt is counted, not returned: the record
// is open and /prioritize can re-send it.
func (p *Processor) run(ctx context.Context, chatID int64, since, until time.Time, all bool) (Result, error) {
	res := Result{ChatID: chatID, Since: since, Until: until}
	log := logger.FromContextOrDefault(ctx, p.logger).With("chat_id", chatID)

	mu := p.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	var (
		msgs []*domain.RawMessage
		err  error
	)
	if all {
		msgs, err = p.messages.FetchAll(ctx, chatID, since, until)
	} else {
		msgs, err = p.messages.FetchUnprocessed(ctx, chatID, since, until)
	}
	if err != nil {
		return res, fmt.Errorf("fetch messages: %w", err)
	}
	res.Messages = len(msgs)
	if len(msgs) == 0 {
		log.Debug("no messages in window")
		return res, nil
	}

	texts, err := p.extractor.Extract(ctx, msgs)
	if err != nil {
		return res, fmt.Errorf("extract tasks: %w", err)
	}
	log.Info("tasks extracted", "messages", len(msgs), "tasks", len(texts))

	ids := domain.MessageIDs(msgs)
	for _, text := range texts {
		task, err := domain.NewProcessedTask(chatID, text, ids)
		if err != nil {
			log.Warn("skipping invalid task", "error", err)
			continue
		}
		if err := p.tasks.Create(ctx, task); err != nil {
			return res, fmt.Errorf("save processed task: %w", err)
		}
		pending, err := p.queue.Enqueue(ctx, task)
		if err != nil {
			return res, fmt.Errorf("enqueue task %d: %w", task.ID, err)
		}
		res.Pending = append(res.Pending, pending)

		if err := p.prompter.PromptPriority(ctx, pending); err != nil {
			res.PromptFailures++
			log.Error("failed to send priority prompt", "pending_id", pending.ID, "error", err)
		}
	}
	return res, nil
}
