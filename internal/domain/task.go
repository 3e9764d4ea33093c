package domain

import (
	"strings"
	"time"
)

// ProcessedTask is one task string extracted from a batch of messages.
// SourceMessageIDs holds the whole batch, not only the messages that mention the task.
type ProcessedTask struct {
	ID               int64     `json:"id"`
	ChatID           int64     `json:"chat_id"`
	Text             string    `json:"text"`
	SourceMessageIDs []int64   `json:"source_message_ids"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

// NewProcessedTask creates a task for chatID from text and the batch's message ids.
func NewProcessedTask(chatID int64, text string, sourceIDs []int64) (*ProcessedTask, error) {
	t := &ProcessedTask{
		ChatID:           chatID,
		Text:             strings.TrimSpace(text),
		SourceMessageIDs: append([]int64(nil), sourceIDs...),
		ExtractedAt:      time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the ProcessedTask has valid data.
func (t *ProcessedTask) Validate() error {
	if t.ChatID == 0 {
		return ErrInvalidChatID
	}
	if t.Text == "" {
		return ErrEmptyTaskText
	}
	return nil
}

// PendingPrioritization is an extracted task awaiting a human priority decision.
// TaskID links back to the ProcessedTask that carries the source message ids.
type PendingPrioritization struct {
	ID               int64     `json:"id"`
	ChatID           int64     `json:"chat_id"`
	TaskID           int64     `json:"task_id,omitempty"`
	Text             string    `json:"text"`
	SelectedPriority Priority  `json:"selected_priority,omitempty"`
	Claimed          bool      `json:"claimed"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewPendingPrioritization creates an open pending record for task.
func NewPendingPrioritization(task *ProcessedTask) (*PendingPrioritization, error) {
	if task == nil {
		return nil, ErrEmptyTaskText
	}
	p := &PendingPrioritization{
		ChatID:    task.ChatID,
		TaskID:    task.ID,
		Text:      task.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks if the PendingPrioritization has valid data.
func (p *PendingPrioritization) Validate() error {
	if p.ChatID == 0 {
		return ErrInvalidChatID
	}
	if p.Text == "" {
		return ErrEmptyTaskText
	}
	if p.SelectedPriority != "" && !p.SelectedPriority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}
