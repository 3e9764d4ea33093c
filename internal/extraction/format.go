package extraction

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// MaxContextRunes bounds the formatted message block, matching the chat message limit.
const MaxContextRunes = 4096

// emptyWindow is rendered when there are no messages to format.
const emptyWindow = "(нет сообщений)"

// FormatMessages renders msgs as "[dd.mm.YYYY HH:MM] Author: text" lines in loc,
// truncated to MaxContextRunes.
func FormatMessages(msgs []*domain.RawMessage, loc *time.Location) string {
	if len(msgs) == 0 {
		return emptyWindow
	}
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s: %s", m.SentAt.In(loc).Format("02.01.2006 15:04"), m.Author(), m.Text)
	}
	return truncateRunes(b.String(), MaxContextRunes)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
