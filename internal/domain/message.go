package domain

import (
	"fmt"
	"time"
)

// RawMessage is a chat message captured for later task extraction.
// Processed flips to true once, after every task derived from the batch
// containing this message has been dispositioned.
type RawMessage struct {
	ID             int64     `json:"id"`
	ChatID         int64     `json:"chat_id"`
	MessageID      int64     `json:"message_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	AuthorName     string    `json:"author_name,omitempty"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
	Processed      bool      `json:"processed"`
}

// NewRawMessage creates an unprocessed message. A zero sentAt is replaced by the current time.
func NewRawMessage(chatID, messageID int64, username, name, text string, sentAt time.Time) (*RawMessage, error) {
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	m := &RawMessage{
		ChatID:         chatID,
		MessageID:      messageID,
		AuthorUsername: username,
		AuthorName:     name,
		Text:           text,
		SentAt:         sentAt.UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks if the RawMessage has valid data.
func (m *RawMessage) Validate() error {
	if m.ChatID == 0 {
		return ErrInvalidChatID
	}
	if m.Text == "" {
		return ErrEmptyMessageText
	}
	return nil
}

// Author renders the sender as "Name (@username)", falling back to whichever part is known.
func (m *RawMessage) Author() string {
	switch {
	case m.AuthorName != "" && m.AuthorUsername != "":
		return fmt.Sprintf("%s (@%s)", m.AuthorName, m.AuthorUsername)
	case m.AuthorUsername != "":
		return "@" + m.AuthorUsername
	case m.AuthorName != "":
		return m.AuthorName
	default:
		return "Клиент"
	}
}

// MessageIDs returns the internal ids of msgs in order.
func MessageIDs(msgs []*RawMessage) []int64 {
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}
