package extraction

import (
	"strings"
	"unicode"
)

// NoTasksSentinel is the phrase the model answers with when nothing actionable was said.
const NoTasksSentinel = "нет задач"

// ParseTasks splits a model reply into task strings. List markers and blank
// lines are dropped and duplicates removed, keeping first-seen order. A reply
// containing NoTasksSentinel on any line yields no tasks at all, even when other
// lines look like valid tasks.
func ParseTasks(reply string) []string {
	var lines []string
	for _, raw := range strings.Split(reply, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(raw), NoTasksSentinel) {
			return []string{}
		}
		if line := stripMarker(raw); line != "" {
			lines = append(lines, line)
		}
	}

	seen := make(map[string]struct{}, len(lines))
	tasks := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		tasks = append(tasks, line)
	}
	return tasks
}

// stripMarker removes a leading bullet ("-", "*", "•", "–") or ordinal ("1.", "2)").
// An ordinal counts only when whitespace follows it, so "1.5x faster export"
// keeps its number.
func stripMarker(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•–— \t")

	digits := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits > 0 && (line[digits] == '.' || line[digits] == ')') {
		if rest := line[digits+1:]; rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			line = rest
		}
	}
	return strings.TrimSpace(strings.TrimRight(line, "- "))
}
