package ledger

import (
	"fmt"
	"strconv"
)

// Projects maps chats to the project column value written for their tasks.
type Projects struct {
	Default string
	ByChat  map[int64]string
}

// NewProjects parses a chat-id keyed map as found in configuration.
func NewProjects(def string, byChat map[string]string) (Projects, error) {
	p := Projects{Default: def, ByChat: make(map[int64]string, len(byChat))}
	for k, v := range byChat {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return Projects{}, fmt.Errorf("invalid chat id %q in chat projects: %w", k, err)
		}
		p.ByChat[id] = v
	}
	return p, nil
}

// For returns the project of chatID, falling back to Default.
func (p Projects) For(chatID int64) string {
	if name, ok := p.ByChat[chatID]; ok {
		return name
	}
	return p.Default
}
