package prioritization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

// DefaultImportantCap is the default bound on important-tier ledger rows.
const DefaultImportantCap = 10

// Observer receives capacity and ledger events. *observability.Metrics satisfies it.
type Observer interface {
	ObserveResolution(kind string)
	ObserveLedgerError(operation string)
	ObserveDowngrade()
}

type nopObserver struct{}

func (nopObserver) ObserveResolution(string)  {}
func (nopObserver) ObserveLedgerError(string) {}
func (nopObserver) ObserveDowngrade()         {}

// Enforcer keeps the count of important-tier ledger rows within a cap.
// It only reads and rewrites ledger rows; pending records are not its concern.
type Enforcer struct {
	ledger   ledger.Ledger
	cap      int
	logger   *slog.Logger
	observer Observer
}

// NewEnforcer creates an Enforcer. A non-positive cap uses DefaultImportantCap.
func NewEnforcer(l ledger.Ledger, cap int, log *slog.Logger, observer Observer) *Enforcer {
	if cap <= 0 {
		cap = DefaultImportantCap
	}
	if log == nil {
		log = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Enforcer{
		ledger:   l,
		cap:      cap,
		logger:   log.With("component", "capacity_enforcer"),
		observer: observer,
	}
}

// Cap returns the configured bound.
func (e *Enforcer) Cap() int { return e.cap }

// CountImportant counts important-tier rows in the ledger.
func (e *Enforcer) CountImportant(ctx context.Context) (int, error) {
	rows, err := e.ledger.ListImportantRows(ctx)
	if err != nil {
		e.observer.ObserveLedgerError("list_important")
		return 0, err
	}
	return len(rows), nil
}

// IsImportantCapExceeded reports whether the ledger holds more important rows than the cap.
func (e *Enforcer) IsImportantCapExceeded(ctx context.Context) (bool, error) {
	n, err := e.CountImportant(ctx)
	if err != nil {
		return false, err
	}
	return n > e.cap, nil
}

// Admit reports whether one more important row fits under the cap
// (count < cap). When the ledger cannot be read it admits and returns the
// error so the caller can log it: capacity checking never blocks task capture.
func (e *Enforcer) Admit(ctx context.Context) (bool, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)
	n, err := e.CountImportant(ctx)
	if err != nil {
		log.Warn("capacity check failed, admitting without check", "error", err)
		return true, err
	}
	log.Debug("capacity check", "important", n, "cap", e.cap)
	return n < e.cap, nil
}

// EnforceImportantCap downgrades one row when the important count exceeds the cap.
// The victim is the most recent important row other than the last one, so the
// task that was just appended keeps its priority. Returns nil when the cap holds.
func (e *Enforcer) EnforceImportantCap(ctx context.Context) (*ledger.Row, error) {
	rows, err := e.ledger.ListImportantRows(ctx)
	if err != nil {
		e.observer.ObserveLedgerError("list_important")
		return nil, err
	}
	if len(rows) <= e.cap || len(rows) < 2 {
		return nil, nil
	}

	victim := rows[len(rows)-2]
	if err := e.ledger.UpdatePriority(ctx, victim.Index, domain.PriorityMedium); err != nil {
		e.observer.ObserveLedgerError("update_priority")
		return nil, fmt.Errorf("downgrade row %d: %w", victim.Index, err)
	}
	e.observer.ObserveDowngrade()
	logger.FromContextOrDefault(ctx, e.logger).Info("important row downgraded",
		"row_index", victim.Index,
		"from", string(victim.Priority),
		"important", len(rows),
		"cap", e.cap)
	victim.Priority = domain.PriorityMedium
	return &victim, nil
}

// Recount applies EnforceImportantCap until the cap holds and returns every
// downgraded row. It corrects the race where two concurrent selections both
// passed Admit.
func (e *Enforcer) Recount(ctx context.Context) ([]ledger.Row, error) {
	n, err := e.CountImportant(ctx)
	if err != nil {
		return nil, err
	}

	var downgraded []ledger.Row
	// Each round removes one important row, so n-cap rounds suffice.
	for round := 0; round < n-e.cap; round++ {
		if err := ctx.Err(); err != nil {
			return downgraded, err
		}
		row, err := e.EnforceImportantCap(ctx)
		if err != nil {
			return downgraded, err
		}
		if row == nil {
			break
		}
		downgraded = append(downgraded, *row)
	}
	return downgraded, nil
}
