package prioritization

import (
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
)

// ResolutionKind names the outcome of a decision on a pending record.
type ResolutionKind string

// Resolution kinds.
const (
	// ResolutionPrioritized means the task was appended at the chosen priority.
	ResolutionPrioritized ResolutionKind = "prioritized"
	// ResolutionDowngraded means the task was appended at medium or low after
	// the important tier was full.
	ResolutionDowngraded ResolutionKind = "downgraded"
	// ResolutionCapacityExceeded means the important tier is full and the
	// human must choose between downgrading the task and nominating a victim.
	ResolutionCapacityExceeded ResolutionKind = "capacity_exceeded"
	// ResolutionNominationRequired means an existing important row must be
	// chosen for downgrade. Candidates lists them.
	ResolutionNominationRequired ResolutionKind = "nomination_required"
	// ResolutionDeleted means the task was rejected and removed everywhere.
	ResolutionDeleted ResolutionKind = "deleted"
	// ResolutionStale means the record is gone or held by another decision.
	// Nothing changed; the prompt's buttons should be cleared.
	ResolutionStale ResolutionKind = "stale"
)

// Terminal reports whether the pending record no longer exists after this outcome.
func (k ResolutionKind) Terminal() bool {
	switch k {
	case ResolutionPrioritized, ResolutionDowngraded, ResolutionDeleted:
		return true
	default:
		return false
	}
}

// Resolution describes what a decision did.
type Resolution struct {
	Kind      ResolutionKind
	PendingID int64
	ChatID    int64
	Text      string
	Priority  domain.Priority

	// Candidates are the important rows offered for nomination.
	Candidates []ledger.Row
	// Demoted is the existing row moved to medium to make room.
	Demoted *ledger.Row
	// LedgerRow is the index of the ledger row removed by a delete, or 0.
	LedgerRow int
	// MessagesMarked counts source messages flagged processed by this decision.
	MessagesMarked int64
	// CapacityUnchecked is set when the ledger could not be read and the
	// important task was admitted without a capacity check.
	CapacityUnchecked bool
}

func resolutionFor(kind ResolutionKind, p *domain.PendingPrioritization, prio domain.Priority) Resolution {
	return Resolution{
		Kind:      kind,
		PendingID: p.ID,
		ChatID:    p.ChatID,
		Text:      p.Text,
		Priority:  prio,
	}
}
