package prioritization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store"
)

// Service owns the lifecycle of pending prioritization records.
//
// Each public decision method returns a Resolution describing what happened
// and an error only for failures the caller may retry: store errors and
// ledger failures on the append path. Stale references never produce an
// error. Service is safe for concurrent use; the store's claim protocol
// serializes decisions on the same record.
type Service struct {
	stores   store.Stores
	tx       store.Transactor
	ledger   ledger.Ledger
	enforcer *Enforcer
	projects ledger.Projects
	logger   *slog.Logger
	observer Observer
}

// NewService creates a Service. stores must carry message, task and pending
// stores, and tx must run functions against the same backing store.
// observer may be nil. Missing dependencies return ErrNilDependency.
func NewService(
	stores store.Stores,
	tx store.Transactor,
	l ledger.Ledger,
	enforcer *Enforcer,
	projects ledger.Projects,
	log *slog.Logger,
	observer Observer,
) (*Service, error) {
	if stores.Messages == nil || stores.Tasks == nil || stores.Pending == nil {
		return nil, fmt.Errorf("%w: stores", ErrNilDependency)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: transactor", ErrNilDependency)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: ledger", ErrNilDependency)
	}
	if enforcer == nil {
		return nil, fmt.Errorf("%w: enforcer", ErrNilDependency)
	}
	if log == nil {
		log = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		stores:   stores,
		tx:       tx,
		ledger:   l,
		enforcer: enforcer,
		projects: projects,
		logger:   log.With("component", "prioritization_service"),
		observer: observer,
	}, nil
}

// Enforcer returns the capacity enforcer used by the service.
func (s *Service) Enforcer() *Enforcer { return s.enforcer }

// Enqueue opens a pending record for a persisted task. The record links back
// to the task, which holds the batch's message ids used when the record is
// finalized.
func (s *Service) Enqueue(ctx context.Context, task *domain.ProcessedTask) (*domain.PendingPrioritization, error) {
	p, err := domain.NewPendingPrioritization(task)
	if err != nil {
		return nil, newServiceError("enqueue", "invalid task", err)
	}
	if err := s.stores.Pending.Create(ctx, p); err != nil {
		return nil, newServiceError("enqueue", "failed to create pending record", err)
	}
	return p, nil
}

// ListPending returns the open records of chatID, oldest first.
func (s *Service) ListPending(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error) {
	list, err := s.stores.Pending.ListByChat(ctx, chatID)
	if err != nil {
		return nil, newServiceError("list_pending", "failed to list pending records", err)
	}
	return list, nil
}

// Select handles the primary priority choice.
//
// A non-important priority is appended to the ledger directly. An important
// one is appended only when the enforcer admits it; otherwise the claim is
// released and ResolutionCapacityExceeded asks for a secondary choice. If the
// ledger cannot be read for the check, the task is appended anyway and
// CapacityUnchecked is set on the result.
func (s *Service) Select(ctx context.Context, pendingID int64, prio domain.Priority) (Resolution, error) {
	const op = "select"
	log := logger.FromContextOrDefault(ctx, s.logger).With("pending_id", pendingID, "priority", string(prio))

	if !prio.Valid() {
		return Resolution{}, newServiceError(op, "invalid priority", domain.ErrInvalidPriority)
	}
	p, stale, err := s.claim(ctx, op, pendingID, prio)
	if err != nil || stale != nil {
		return s.done(stale), err
	}

	unchecked := false
	if prio.IsImportant() {
		admit, checkErr := s.enforcer.Admit(ctx)
		if checkErr != nil {
			log.Warn("ledger unavailable during capacity check, failing open", "error", checkErr)
			unchecked = true
		}
		if !admit {
			if err := s.release(ctx, p.ID); err != nil {
				return Resolution{}, newServiceError(op, "failed to release claim", err)
			}
			log.Info("important tier full, asking for a secondary choice", "cap", s.enforcer.Cap())
			res := resolutionFor(ResolutionCapacityExceeded, p, prio)
			return s.done(&res), nil
		}
	}

	res, err := s.commit(ctx, op, p, prio, ResolutionPrioritized)
	res.CapacityUnchecked = unchecked
	return res, err
}

// Downgrade is the secondary choice that appends the task at medium or low.
// An important target returns ErrNotDowngrade.
func (s *Service) Downgrade(ctx context.Context, pendingID int64, prio domain.Priority) (Resolution, error) {
	const op = "downgrade"
	if !prio.Valid() || prio.IsImportant() {
		return Resolution{}, newServiceError(op, "invalid downgrade target", ErrNotDowngrade)
	}
	p, stale, err := s.claim(ctx, op, pendingID, prio)
	if err != nil || stale != nil {
		return s.done(stale), err
	}
	return s.commit(ctx, op, p, prio, ResolutionDowngraded)
}

// KeepImportant is the secondary choice that keeps the task at an important
// priority. It lists the important rows so one can be nominated for downgrade;
// the record stays open. If room opened up meanwhile, the task is appended directly.
func (s *Service) KeepImportant(ctx context.Context, pendingID int64, prio domain.Priority) (Resolution, error) {
	const op = "keep_important"
	if !prio.IsImportant() {
		return Resolution{}, newServiceError(op, "invalid priority", ErrNotImportant)
	}

	p, err := s.stores.Pending.Get(ctx, pendingID)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			return s.done(s.stale(pendingID)), nil
		}
		return Resolution{}, newServiceError(op, "failed to load pending record", err)
	}
	if p.Claimed {
		return s.done(s.stale(pendingID)), nil
	}

	rows, err := s.ledger.ListImportantRows(ctx)
	if err != nil {
		s.observer.ObserveLedgerError("list_important")
		return Resolution{}, newServiceError(op, "failed to list important rows", err)
	}
	if len(rows) < s.enforcer.Cap() {
		return s.Select(ctx, pendingID, prio)
	}

	res := resolutionFor(ResolutionNominationRequired, p, prio)
	res.Candidates = rows
	return s.done(&res), nil
}

// Demote downgrades the nominated ledger row to medium and appends the task at prio.
// If the row no longer holds an important task (the ledger changed since the
// nomination list was rendered), a fresh list is returned instead.
func (s *Service) Demote(ctx context.Context, pendingID int64, prio domain.Priority, rowIndex int) (Resolution, error) {
	const op = "demote"
	log := logger.FromContextOrDefault(ctx, s.logger).With("pending_id", pendingID, "row_index", rowIndex)

	if !prio.IsImportant() {
		return Resolution{}, newServiceError(op, "invalid priority", ErrNotImportant)
	}
	p, stale, err := s.claim(ctx, op, pendingID, prio)
	if err != nil || stale != nil {
		return s.done(stale), err
	}

	rows, err := s.ledger.ListImportantRows(ctx)
	if err != nil {
		s.observer.ObserveLedgerError("list_important")
		_ = s.release(ctx, p.ID)
		return Resolution{}, newServiceError(op, "failed to list important rows", err)
	}
	var victim *ledger.Row
	for i := range rows {
		if rows[i].Index == rowIndex {
			victim = &rows[i]
			break
		}
	}
	if victim == nil {
		if err := s.release(ctx, p.ID); err != nil {
			return Resolution{}, newServiceError(op, "failed to release claim", err)
		}
		log.Info("nominated row is no longer important, offering a fresh list")
		res := resolutionFor(ResolutionNominationRequired, p, prio)
		res.Candidates = rows
		return s.done(&res), nil
	}

	previous := victim.Priority
	if err := s.ledger.UpdatePriority(ctx, victim.Index, domain.PriorityMedium); err != nil {
		s.observer.ObserveLedgerError("update_priority")
		_ = s.release(ctx, p.ID)
		return Resolution{}, newServiceError(op, "failed to downgrade nominated row", err)
	}
	if err := s.appendRow(ctx, op, p, prio); err != nil {
		// Put the nominated row back so the tier does not lose a task.
		if restoreErr := s.ledger.UpdatePriority(ctx, victim.Index, previous); restoreErr != nil {
			s.observer.ObserveLedgerError("update_priority")
			log.Error("failed to restore nominated row after append failure",
				"error", restoreErr,
				"priority", string(previous))
		}
		return Resolution{}, err
	}
	s.observer.ObserveDowngrade()
	victim.Priority = domain.PriorityMedium

	res, err := s.finish(ctx, op, p, prio, ResolutionPrioritized)
	res.Demoted = victim
	return res, err
}

// Delete rejects the task: the pending record and the processed tasks of the
// chat with the same text are removed, and the first ledger row with that
// description is deleted. Processed tasks still referenced by other open
// records are kept, since those records need their source message ids.
//
// Delete claims the record like any other decision, so a rejection racing a
// priority choice loses cleanly and reports ResolutionStale. Ledger failures
// are logged and do not fail the call.
func (s *Service) Delete(ctx context.Context, pendingID int64) (Resolution, error) {
	const op = "delete"
	log := logger.FromContextOrDefault(ctx, s.logger).With("pending_id", pendingID)

	p, stale, err := s.claim(ctx, op, pendingID, "")
	if err != nil || stale != nil {
		return s.done(stale), err
	}

	res := resolutionFor(ResolutionDeleted, p, "")
	err = s.tx.InTx(ctx, func(ctx context.Context, st store.Stores) error {
		sources, err := sourceIDs(ctx, st, p)
		if err != nil {
			return err
		}
		res.MessagesMarked, err = finalize(ctx, st, p, sources)
		if err != nil {
			return err
		}
		if _, err := st.Tasks.DeleteByText(ctx, p.ChatID, p.Text); err != nil {
			return fmt.Errorf("delete processed tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			return s.done(s.stale(pendingID)), nil
		}
		if relErr := s.release(ctx, p.ID); relErr != nil {
			log.Error("failed to release claim after delete failure", "error", relErr)
		}
		return Resolution{}, newServiceError(op, "failed to delete task", err)
	}

	row, found, err := s.ledger.DeleteRowByDescription(ctx, p.Text)
	switch {
	case err != nil:
		s.observer.ObserveLedgerError("delete")
		log.Warn("failed to delete ledger row", "error", err)
	case found:
		res.LedgerRow = row
	}
	log.Info("task deleted", "ledger_row", res.LedgerRow, "messages_marked", res.MessagesMarked)
	return s.done(&res), nil
}

// Recount runs the corrective capacity recount.
func (s *Service) Recount(ctx context.Context) ([]ledger.Row, error) {
	rows, err := s.enforcer.Recount(ctx)
	if err != nil {
		return rows, newServiceError("recount", "capacity recount failed", err)
	}
	return rows, nil
}

// claim wins the record for one decision. A nil record with a non-nil
// resolution means the decision is stale.
func (s *Service) claim(
	ctx context.Context,
	op string,
	pendingID int64,
	prio domain.Priority,
) (*domain.PendingPrioritization, *Resolution, error) {
	p, err := s.stores.Pending.Claim(ctx, pendingID, prio)
	switch {
	case err == nil:
		return p, nil, nil
	case errors.Is(err, store.ErrPendingNotFound), errors.Is(err, store.ErrPendingClaimed):
		logger.FromContextOrDefault(ctx, s.logger).Debug("stale decision",
			"operation", op,
			"pending_id", pendingID,
			"reason", err.Error())
		return nil, s.stale(pendingID), nil
	default:
		return nil, nil, newServiceError(op, "failed to claim pending record", err)
	}
}

func (s *Service) release(ctx context.Context, id int64) error {
	err := s.stores.Pending.Release(ctx, id)
	if errors.Is(err, store.ErrPendingNotFound) {
		return nil
	}
	return err
}

// commit appends the claimed task to the ledger and finalizes the record.
// On failure the claim is released so the decision can be retried.
func (s *Service) commit(
	ctx context.Context,
	op string,
	p *domain.PendingPrioritization,
	prio domain.Priority,
	kind ResolutionKind,
) (Resolution, error) {
	if err := s.appendRow(ctx, op, p, prio); err != nil {
		return Resolution{}, err
	}
	return s.finish(ctx, op, p, prio, kind)
}

// appendRow writes the claimed task to the ledger, releasing the claim if
// the ledger rejects it.
func (s *Service) appendRow(ctx context.Context, op string, p *domain.PendingPrioritization, prio domain.Priority) error {
	if err := s.ledger.AppendRow(ctx, s.projects.For(p.ChatID), p.Text, prio); err != nil {
		s.observer.ObserveLedgerError("append")
		if relErr := s.release(ctx, p.ID); relErr != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to release claim after ledger failure",
				"error", relErr,
				"pending_id", p.ID)
		}
		return newServiceError(op, "failed to append ledger row", err)
	}
	return nil
}

// finish removes the record and marks its batch once the ledger holds the
// task. A record that vanished meanwhile makes the decision stale.
func (s *Service) finish(
	ctx context.Context,
	op string,
	p *domain.PendingPrioritization,
	prio domain.Priority,
	kind ResolutionKind,
) (Resolution, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("pending_id", p.ID, "priority", string(prio))

	res := resolutionFor(kind, p, prio)
	err := s.tx.InTx(ctx, func(ctx context.Context, st store.Stores) error {
		sources, err := sourceIDs(ctx, st, p)
		if err != nil {
			return err
		}
		res.MessagesMarked, err = finalize(ctx, st, p, sources)
		return err
	})
	if errors.Is(err, store.ErrPendingNotFound) {
		log.Warn("pending record removed while the decision was committing", "text_len", len(p.Text))
		return s.done(s.stale(p.ID)), nil
	}
	if err != nil {
		log.Error("ledger row appended but finalize failed", "error", err)
		if relErr := s.release(ctx, p.ID); relErr != nil {
			log.Error("failed to release claim after finalize failure", "error", relErr)
		}
		return Resolution{}, newServiceError(op, "failed to finalize pending record", err)
	}

	log.Info("task committed", "kind", string(kind), "messages_marked", res.MessagesMarked)
	return s.done(&res), nil
}

func (s *Service) stale(pendingID int64) *Resolution {
	return &Resolution{Kind: ResolutionStale, PendingID: pendingID}
}

func (s *Service) done(res *Resolution) Resolution {
	if res == nil {
		return Resolution{}
	}
	s.observer.ObserveResolution(string(res.Kind))
	return *res
}

// sourceIDs loads the batch provenance of p. A task removed since is treated as empty.
func sourceIDs(ctx context.Context, st store.Stores, p *domain.PendingPrioritization) ([]int64, error) {
	if p.TaskID == 0 {
		return nil, nil
	}
	task, err := st.Tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load processed task: %w", err)
	}
	return task.SourceMessageIDs, nil
}

// finalize removes p and marks the source messages that no other open record
// of the chat still depends on. A batch's messages therefore flip to processed
// once its last pending record is resolved.
func finalize(ctx context.Context, st store.Stores, p *domain.PendingPrioritization, sources []int64) (int64, error) {
	if err := st.Pending.Delete(ctx, p.ID); err != nil {
		return 0, err
	}
	if len(sources) == 0 {
		return 0, nil
	}

	open, err := st.Pending.ListByChat(ctx, p.ChatID)
	if err != nil {
		return 0, fmt.Errorf("list open records: %w", err)
	}
	held := make(map[int64]bool)
	for _, other := range open {
		ids, err := sourceIDs(ctx, st, other)
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			held[id] = true
		}
	}

	free := make([]int64, 0, len(sources))
	for _, id := range sources {
		if !held[id] {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return 0, nil
	}
	return st.Messages.MarkProcessed(ctx, free)
}
