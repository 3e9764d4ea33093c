package bot

import (
	"context"
	"errors"

	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
	"github.com/phrazzld/tasktracker/internal/service/prioritization"
)

// Toasts shown on button presses.
const (
	toastStaffOnly = "Только сотрудники могут выбирать приоритет."
	toastStale     = "Задача уже обработана."
	toastFailed    = "Не удалось обработать, попробуйте ещё раз."
	toastLedger    = "Таблица задач недоступна, попробуйте позже."
)

// handleCallback routes a prompt button press to the decider and renders the
// outcome on the prompt message. Only staff may answer prompts. A stale
// resolution clears the buttons so the prompt cannot be pressed again.
func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	log := logger.FromContextOrDefault(ctx, b.logger).With("callback_id", q.ID, "user_id", q.From.ID)
	ctx = logger.WithLogger(ctx, log)

	if !b.staff.IsStaff(ctx, q.From.ID, q.From.Username) {
		b.answer(ctx, q, toastStaffOnly)
		return
	}
	data, err := parseCallbackData(q.Data)
	if err != nil {
		log.Warn("ignoring callback", "error", err)
		b.answer(ctx, q, "")
		return
	}
	log = log.With("action", data.Action, "pending_id", data.PendingID)
	ctx = logger.WithLogger(ctx, log)

	var res prioritization.Resolution
	switch data.Action {
	case actionSelect:
		res, err = b.decider.Select(ctx, data.PendingID, data.Priority)
	case actionDowngrade:
		res, err = b.decider.Downgrade(ctx, data.PendingID, data.Priority)
	case actionKeep:
		res, err = b.decider.KeepImportant(ctx, data.PendingID, data.Priority)
	case actionDemote:
		res, err = b.decider.Demote(ctx, data.PendingID, data.Priority, data.Row)
	case actionDelete:
		res, err = b.decider.Delete(ctx, data.PendingID)
	}
	if err != nil {
		log.Error("decision failed", "error", err)
		if errors.Is(err, ledger.ErrUnavailable) {
			b.answer(ctx, q, toastLedger)
		} else {
			b.answer(ctx, q, toastFailed)
		}
		return
	}
	log.Info("decision resolved", "kind", string(res.Kind), "messages_marked", res.MessagesMarked)

	if res.Kind == prioritization.ResolutionStale {
		b.answer(ctx, q, toastStale)
	} else {
		b.answer(ctx, q, "")
	}
	b.render(ctx, q.Message, res)
}

func (b *Bot) answer(ctx context.Context, q *telegram.CallbackQuery, text string) {
	if err := b.sender.AnswerCallbackQuery(ctx, q.ID, text); err != nil {
		logger.FromContextOrDefault(ctx, b.logger).Warn("failed to answer callback", "error", err)
	}
}

// render updates the prompt message to reflect res.
func (b *Bot) render(ctx context.Context, m *telegram.Message, res prioritization.Resolution) {
	if m == nil {
		return
	}
	chatID, msgID := m.Chat.ID, m.MessageID

	var err error
	switch res.Kind {
	case prioritization.ResolutionPrioritized, prioritization.ResolutionDowngraded:
		err = b.sender.EditMessageText(ctx, chatID, msgID,
			committedText(res.Text, res.Priority, res.Demoted, res.CapacityUnchecked), nil)
	case prioritization.ResolutionCapacityExceeded:
		err = b.sender.EditMessageText(ctx, chatID, msgID,
			capacityText(res.Text, res.Priority), capacityKeyboard(res.PendingID, res.Priority))
	case prioritization.ResolutionNominationRequired:
		err = b.sender.EditMessageText(ctx, chatID, msgID,
			nominationText(res.Text, res.Priority), nominationKeyboard(res.PendingID, res.Priority, res.Candidates))
	case prioritization.ResolutionDeleted:
		err = b.sender.EditMessageText(ctx, chatID, msgID, deletedText(res.Text), nil)
	case prioritization.ResolutionStale:
		err = b.sender.EditMessageReplyMarkup(ctx, chatID, msgID, nil)
	}
	if err != nil && !telegram.IsNotModified(err) {
		logger.FromContextOrDefault(ctx, b.logger).Warn("failed to update prompt", "message_id", msgID, "error", err)
	}
}
