package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
)

// TasksPageSize is the number of tasks per /tasks page.
const TasksPageSize = 20

// candidateLabelRunes bounds the description shown on a nomination button.
const candidateLabelRunes = 48

func button(text string, data callbackData) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data.String()}
}

func priorityKeyboard(pendingID int64) *telegram.InlineKeyboardMarkup {
	prio := func(p domain.Priority) telegram.InlineKeyboardButton {
		return button(p.Label(), callbackData{Action: actionSelect, PendingID: pendingID, Priority: p})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{prio(domain.PriorityCritical), prio(domain.PriorityBlocker)},
		{prio(domain.PriorityHigh), prio(domain.PriorityMedium), prio(domain.PriorityLow)},
		{button("Удалить", callbackData{Action: actionDelete, PendingID: pendingID})},
	}}
}

func downgradeRow(pendingID int64) []telegram.InlineKeyboardButton {
	return []telegram.InlineKeyboardButton{
		button("Понизить до Medium", callbackData{Action: actionDowngrade, PendingID: pendingID, Priority: domain.PriorityMedium}),
		button("Понизить до Low", callbackData{Action: actionDowngrade, PendingID: pendingID, Priority: domain.PriorityLow}),
	}
}

func capacityKeyboard(pendingID int64, p domain.Priority) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		downgradeRow(pendingID),
		{button("Оставить "+p.Label(), callbackData{Action: actionKeep, PendingID: pendingID, Priority: p})},
		{button("Удалить", callbackData{Action: actionDelete, PendingID: pendingID})},
	}}
}

func nominationKeyboard(pendingID int64, p domain.Priority, candidates []ledger.Row) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(candidates)+1)
	for _, c := range candidates {
		label := fmt.Sprintf("[%s] %s", c.Priority.Label(), truncate(c.Description, candidateLabelRunes))
		rows = append(rows, []telegram.InlineKeyboardButton{
			button(label, callbackData{Action: actionDemote, PendingID: pendingID, Priority: p, Row: c.Index}),
		})
	}
	rows = append(rows, downgradeRow(pendingID))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func promptText(text string) string {
	return "Новая задача:\n" + text + "\nВыберите приоритет:"
}

func capacityText(text string, p domain.Priority) string {
	return fmt.Sprintf("Лимит важных задач исчерпан.\n%s\nПонизьте приоритет новой задачи или оставьте %s и выберите задачу для понижения.",
		text, p.Label())
}

func nominationText(text string, p domain.Priority) string {
	return fmt.Sprintf("Задача:\n%s\nВыберите задачу, которая будет понижена до Medium, чтобы добавить новую как %s:",
		text, p.Label())
}

func committedText(text string, p domain.Priority, demoted *ledger.Row, unchecked bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Задача добавлена с приоритетом %s:\n%s", p.Label(), text)
	if demoted != nil {
		fmt.Fprintf(&b, "\nПонижена до Medium: %s", demoted.Description)
	}
	if unchecked {
		b.WriteString("\nЛимит важных задач не проверен: таблица недоступна.")
	}
	return b.String()
}

func deletedText(text string) string {
	return "Задача удалена:\n" + text
}

func processedText(n int) string {
	return fmt.Sprintf("Обработано задач: %d", n)
}

func parseText(days, received, tasks int) string {
	return fmt.Sprintf("Диапазон: %d дн.\nПолучено сообщений: %d\nОбработано задач: %d", days, received, tasks)
}

func recountText(downgraded []ledger.Row) string {
	if len(downgraded) == 0 {
		return "Пересчёт завершён: лимит важных задач соблюдён."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Пересчёт завершён. Понижено до Medium: %d", len(downgraded))
	for _, r := range downgraded {
		fmt.Fprintf(&b, "\n- %s", r.Description)
	}
	return b.String()
}

// formatTaskList renders one /tasks page. total is the number of tasks in the
// chat and tasks holds the page, newest first.
func formatTaskList(tasks []*domain.ProcessedTask, page, total int, loc *time.Location) string {
	if total == 0 {
		return "Задач пока нет"
	}
	pages := (total + TasksPageSize - 1) / TasksPageSize
	lines := []string{fmt.Sprintf("📄 Список задач (страница %d/%d):", page, pages)}
	start := (page - 1) * TasksPageSize
	for i, t := range tasks {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", start+i+1, t.ExtractedAt.In(loc).Format("02.01.2006 15:04"), t.Text))
	}
	if page < pages {
		lines = append(lines, "", fmt.Sprintf("Для следующей страницы: /tasks %d", page+1))
	}
	return strings.Join(lines, "\n")
}

// chunk splits s into pieces of at most n runes, preferring line breaks.
func chunk(s string, n int) []string {
	var out []string
	for utf8.RuneCountInString(s) > n {
		cut := byteOffset(s, n)
		if i := strings.LastIndexByte(s[:cut], '\n'); i > 0 {
			cut = i + 1
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func byteOffset(s string, runes int) int {
	i := 0
	for pos := range s {
		if i == runes {
			return pos
		}
		i++
	}
	return len(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return s[:byteOffset(s, n-1)] + "…"
}
