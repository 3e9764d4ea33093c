package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
	"github.com/phrazzld/tasktracker/internal/task"
)

// Commands.
const (
	cmdTasks      = "tasks"
	cmdProcessNow = "process_now"
	cmdParse      = "parse"
	cmdPrioritize = "prioritize"
	cmdRecount    = "recount"
)

// parseCommand splits "/name@bot arg1 arg2" into name and args.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// positiveArg returns the first argument as an integer of at least 1, or def.
func positiveArg(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	return n
}

// handleCommand runs a slash command. /tasks is open to everyone in the
// chat; the operator commands require staff and run as jobs.
func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message, cmd string, args []string) {
	log := logger.FromContextOrDefault(ctx, b.logger).With("chat_id", m.Chat.ID, "command", cmd)
	ctx = logger.WithLogger(ctx, log)

	if cmd == cmdTasks {
		b.listTasks(ctx, m.Chat.ID, positiveArg(args, 1))
		return
	}

	switch cmd {
	case cmdProcessNow, cmdParse, cmdPrioritize, cmdRecount:
	default:
		return
	}
	if m.From == nil || !b.staff.IsStaff(ctx, m.From.ID, m.From.Username) {
		log.Debug("ignoring operator command from non-staff user")
		return
	}
	log.Info("operator command received", "user_id", m.From.ID)

	chatID := m.Chat.ID
	switch cmd {
	case cmdProcessNow:
		b.submit(ctx, chatID, task.TaskTypeProcessChat, func(ctx context.Context) (string, error) {
			res, err := b.processor.ProcessChatNow(ctx, chatID)
			if err != nil {
				return "", err
			}
			b.reply(ctx, chatID, processedText(res.Tasks()))
			return processedText(res.Tasks()), nil
		})
	case cmdParse:
		days := positiveArg(args, 1)
		b.submit(ctx, chatID, task.TaskTypeParseRange, func(ctx context.Context) (string, error) {
			until := b.now().UTC()
			since := until.Add(-time.Duration(days) * 24 * time.Hour)
			res, err := b.processor.ProcessChatRange(ctx, chatID, since, until)
			if err != nil {
				return "", err
			}
			text := parseText(days, res.Messages, res.Tasks())
			b.reply(ctx, chatID, text)
			return text, nil
		})
	case cmdPrioritize:
		b.prioritize(ctx, chatID)
	case cmdRecount:
		b.submit(ctx, chatID, task.TaskTypeRecount, func(ctx context.Context) (string, error) {
			rows, err := b.decider.Recount(ctx)
			if err != nil {
				return "", err
			}
			text := recountText(rows)
			b.reply(ctx, chatID, text)
			return text, nil
		})
	}
}

// listTasks replies with one page of the chat's processed tasks, newest
// first. A page past the end is clamped to the last one.
func (b *Bot) listTasks(ctx context.Context, chatID int64, page int) {
	log := logger.FromContextOrDefault(ctx, b.logger)
	total, err := b.tasks.CountByChat(ctx, chatID)
	if err != nil {
		log.Error("failed to count tasks", "error", err)
		return
	}
	if pages := (total + TasksPageSize - 1) / TasksPageSize; page > pages && pages > 0 {
		page = pages
	}
	list, err := b.tasks.ListByChat(ctx, chatID, TasksPageSize, (page-1)*TasksPageSize)
	if err != nil {
		log.Error("failed to list tasks", "error", err)
		return
	}
	b.reply(ctx, chatID, formatTaskList(list, page, total, b.loc))
}

// prioritize re-sends a prompt for every open record of the chat.
func (b *Bot) prioritize(ctx context.Context, chatID int64) {
	log := logger.FromContextOrDefault(ctx, b.logger)
	open, err := b.decider.ListPending(ctx, chatID)
	if err != nil {
		log.Error("failed to list pending records", "error", err)
		return
	}
	if len(open) == 0 {
		b.reply(ctx, chatID, "Нет задач, ожидающих приоритета.")
		return
	}
	for _, p := range open {
		if err := b.prompter.PromptPriority(ctx, p); err != nil {
			log.Error("failed to resend prompt", "pending_id", p.ID, "error", err)
		}
	}
}
