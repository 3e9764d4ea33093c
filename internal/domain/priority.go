package domain

import (
	"fmt"
	"strings"
)

// Priority is the ordinal priority of a task in the ledger.
type Priority string

// Priorities in descending order of urgency.
const (
	PriorityCritical Priority = "critical"
	PriorityBlocker  Priority = "blocker"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// AllPriorities lists every priority from most to least urgent.
var AllPriorities = []Priority{
	PriorityCritical,
	PriorityBlocker,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
}

// ParsePriority accepts a priority name in any letter case, surrounded by
// optional whitespace, as written by the bot or by a human in the ledger.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank returns the position of p in AllPriorities (0 is most urgent), or -1.
func (p Priority) Rank() int {
	for i, known := range AllPriorities {
		if p == known {
			return i
		}
	}
	return -1
}

// IsImportant reports whether p belongs to the important tier
// (critical, blocker, high), which is subject to the capacity cap.
func (p Priority) IsImportant() bool {
	switch p {
	case PriorityCritical, PriorityBlocker, PriorityHigh:
		return true
	default:
		return false
	}
}

// Label is the capitalized form written to the ledger and shown on buttons.
func (p Priority) Label() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	return string(p)
}
