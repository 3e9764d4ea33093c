package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// Prompter sends priority-selection prompts to the chat a task came from.
type Prompter struct {
	sender Sender
	logger *slog.Logger
}

// NewPrompter creates a Prompter.
func NewPrompter(sender Sender, log *slog.Logger) *Prompter {
	if log == nil {
		log = slog.Default()
	}
	return &Prompter{sender: sender, logger: log.With("component", "priority_prompter")}
}

// PromptPriority sends the priority keyboard for p.
func (pr *Prompter) PromptPriority(ctx context.Context, p *domain.PendingPrioritization) error {
	msg, err := pr.sender.SendMessage(ctx, p.ChatID, promptText(p.Text), priorityKeyboard(p.ID))
	if err != nil {
		return fmt.Errorf("send priority prompt for pending %d: %w", p.ID, err)
	}
	pr.logger.Debug("priority prompt sent",
		"chat_id", p.ChatID,
		"pending_id", p.ID,
		"message_id", msg.MessageID,
		"text_len", len(p.Text))
	return nil
}
