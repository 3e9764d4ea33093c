package prioritization

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID int64 = -100

var darkModeChat = []string{
	"Добрый день!",
	"Нужно добавить тёмную тему в настройки",
	"И ещё кнопку экспорта в PDF",
	"Спасибо!",
}

func TestNewService_NilDependencies(t *testing.T) {
	db := memstore.New()
	l := ledger.NewMemory()
	e := NewEnforcer(l, 10, nil, nil)

	_, err := NewService(db.Stores(), nil, l, e, ledger.Projects{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewService(db.Stores(), db, nil, e, ledger.Projects{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
	_, err = NewService(db.Stores(), db, l, nil, ledger.Projects{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestSelect_AppendsAndMarksAfterLastDecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему", "Добавить экспорт в PDF")
	require.Len(t, pending, 2)
	assert.Zero(t, f.processedCount())

	res, err := f.svc.Select(ctx, pending[0].ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	assert.Equal(t, "Добавить тёмную тему", res.Text)
	assert.Zero(t, res.MessagesMarked, "second task of the batch is still open")
	assert.Zero(t, f.processedCount())

	res, err = f.svc.Select(ctx, pending[1].ID, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	assert.Equal(t, int64(len(darkModeChat)), res.MessagesMarked)
	assert.Equal(t, len(darkModeChat), f.processedCount())

	rows := f.ledger.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0].Project)
	assert.Equal(t, domain.PriorityMedium, rows[0].Priority)
	assert.Equal(t, domain.PriorityLow, rows[1].Priority)

	open, err := f.svc.ListPending(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSelect_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	_, err := f.svc.Select(ctx, p.ID, domain.PriorityHigh)
	require.NoError(t, err)

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, res.Kind)
	assert.Len(t, f.ledger.Rows(), 1, "second click must not append again")
	assert.Equal(t, 1, f.observer.Resolutions[string(ResolutionStale)])

	res, err = f.svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, res.Kind)
}

func TestSelect_ClaimedRecordIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	_, err := f.db.Stores().Pending.Claim(ctx, p.ID, domain.PriorityLow)
	require.NoError(t, err)

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, res.Kind)
	assert.Zero(t, f.ledger.Appends)
}

func TestSelect_InvalidPriority(t *testing.T) {
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	_, err := f.svc.Select(context.Background(), p.ID, domain.Priority("urgent"))
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestSelect_ImportantWithFullTierAsksForSecondaryChoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 10)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, ResolutionCapacityExceeded, res.Kind)
	assert.Equal(t, domain.PriorityHigh, res.Priority)
	assert.Len(t, f.ledger.Rows(), 10, "nothing appended before the secondary choice")
	assert.Zero(t, f.processedCount())

	still, err := f.db.Stores().Pending.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, still.Claimed, "claim is released while awaiting the secondary choice")
}

func TestDowngrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 10)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	_, err := f.svc.Select(ctx, p.ID, domain.PriorityCritical)
	require.NoError(t, err)

	_, err = f.svc.Downgrade(ctx, p.ID, domain.PriorityBlocker)
	assert.ErrorIs(t, err, ErrNotDowngrade)

	res, err := f.svc.Downgrade(ctx, p.ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, ResolutionDowngraded, res.Kind)

	rows := f.ledger.Rows()
	require.Len(t, rows, 11)
	assert.Equal(t, domain.PriorityMedium, rows[10].Priority)
	assert.Equal(t, len(darkModeChat), f.processedCount())
}

func TestKeepImportantThenDemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 10)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	res, err := f.svc.KeepImportant(ctx, p.ID, domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNominationRequired, res.Kind)
	require.Len(t, res.Candidates, 10)

	victim := res.Candidates[3]
	res, err = f.svc.Demote(ctx, p.ID, domain.PriorityHigh, victim.Index)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	require.NotNil(t, res.Demoted)
	assert.Equal(t, victim.Description, res.Demoted.Description)
	assert.Equal(t, 1, f.observer.Downgrades)

	important, err := f.ledger.ListImportantRows(ctx)
	require.NoError(t, err)
	assert.Len(t, important, 10)
	assert.Equal(t, "Добавить тёмную тему", important[len(important)-1].Description)
	assert.Equal(t, domain.PriorityMedium, f.ledger.Rows()[3].Priority)
}

func TestKeepImportant_RoomOpenedAppendsDirectly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 9)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	res, err := f.svc.KeepImportant(ctx, p.ID, domain.PriorityBlocker)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	assert.Len(t, f.ledger.Rows(), 10)
}

func TestKeepImportant_RejectsNonImportant(t *testing.T) {
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	_, err := f.svc.KeepImportant(context.Background(), p.ID, domain.PriorityLow)
	assert.ErrorIs(t, err, ErrNotImportant)
	_, err = f.svc.Demote(context.Background(), p.ID, domain.PriorityLow, 2)
	assert.ErrorIs(t, err, ErrNotImportant)
}

func TestDemote_RowNoLongerImportantOffersFreshList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 10)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]

	require.NoError(t, f.ledger.UpdatePriority(ctx, 5, domain.PriorityLow))

	res, err := f.svc.Demote(ctx, p.ID, domain.PriorityHigh, 5)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNominationRequired, res.Kind)
	assert.Len(t, res.Candidates, 9)
	assert.Len(t, f.ledger.Rows(), 10, "nothing appended")

	still, err := f.db.Stores().Pending.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, still.Claimed)
}

func TestSelect_LedgerUnavailableFailsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]
	f.ledger.ListErr = errSheetsDown

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityCritical)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	assert.True(t, res.CapacityUnchecked)
	assert.Len(t, f.ledger.Rows(), 1)
}

func TestSelect_AppendFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]
	f.ledger.AppendErr = errSheetsDown

	_, err := f.svc.Select(ctx, p.ID, domain.PriorityMedium)
	require.Error(t, err)
	assert.True(t, isUnavailable(err))
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "select", svcErr.Operation)
	assert.Equal(t, 1, f.observer.LedgerErrors["append"])
	assert.Zero(t, f.processedCount())

	f.ledger.AppendErr = nil
	res, err := f.svc.Select(ctx, p.ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему", "Добавить экспорт в PDF")

	_, err := f.svc.Select(ctx, pending[1].ID, domain.PriorityLow)
	require.NoError(t, err)
	require.NoError(t, f.ledger.AppendRow(ctx, "Acme", "Добавить тёмную тему", domain.PriorityMedium))

	res, err := f.svc.Delete(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionDeleted, res.Kind)
	assert.Equal(t, 3, res.LedgerRow)
	assert.Equal(t, int64(len(darkModeChat)), res.MessagesMarked)

	n, err := f.db.Stores().Tasks.CountByChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.ledger.Rows(), 1)
	assert.Equal(t, "Добавить экспорт в PDF", f.ledger.Rows()[0].Description)
}

func TestDelete_LedgerFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]
	f.ledger.DeleteErr = errSheetsDown

	res, err := f.svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionDeleted, res.Kind)
	assert.Zero(t, res.LedgerRow)
	assert.Equal(t, 1, f.observer.LedgerErrors["delete"])

	_, err = f.db.Stores().Pending.Get(ctx, p.ID)
	assert.Error(t, err)
}

func TestDelete_KeepsProvenanceOfSameTextTaskInAnotherBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.batchFrom(t, chatID, 1, []string{"fix login please"}, "Fix login")[0]
	second := f.batchFrom(t, chatID, 10, []string{"login is broken again"}, "Fix login")[0]

	res, err := f.svc.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionDeleted, res.Kind)
	assert.Equal(t, int64(1), res.MessagesMarked)

	open, err := f.db.Stores().Pending.Get(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.db.Stores().Tasks.GetByID(ctx, open.TaskID)
	require.NoError(t, err, "task of the open record must survive the delete")

	res, err = f.svc.Select(ctx, first.ID, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	assert.Equal(t, int64(1), res.MessagesMarked)
	assert.Equal(t, map[string]bool{
		"fix login please":      true,
		"login is broken again": true,
	}, f.processed())
}

func TestDelete_LosesToDecisionHoldingTheClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Dark mode")[0]

	var deleted Resolution
	f.ledger.BeforeAppend = func() {
		var err error
		deleted, err = f.svc.Delete(ctx, p.ID)
		require.NoError(t, err)
	}

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, deleted.Kind)
	assert.Equal(t, ResolutionPrioritized, res.Kind)
	require.Len(t, f.ledger.Rows(), 1)
	assert.Equal(t, "Dark mode", f.ledger.Rows()[0].Description)
	assert.Equal(t, len(darkModeChat), f.processedCount())
}

func TestDelete_ClaimedRecordIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Dark mode")[0]
	_, err := f.db.Stores().Pending.Claim(ctx, p.ID, domain.PriorityHigh)
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, res.Kind)

	_, err = f.db.Stores().Pending.Get(ctx, p.ID)
	assert.NoError(t, err, "record stays with the decision that claimed it")
}

func TestSelect_RecordRemovedWhileCommittingIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.batch(t, chatID, darkModeChat, "Dark mode")[0]
	f.ledger.BeforeAppend = func() {
		require.NoError(t, f.db.Stores().Pending.Delete(ctx, p.ID))
	}

	res, err := f.svc.Select(ctx, p.ID, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, ResolutionStale, res.Kind)
	assert.Zero(t, f.processedCount())
}

func TestDemote_AppendFailureRestoresNominatedRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedImportant(t, f.ledger, 10)
	p := f.batch(t, chatID, darkModeChat, "Добавить тёмную тему")[0]
	victim := f.ledger.Rows()[3]
	f.ledger.AppendErr = errSheetsDown

	_, err := f.svc.Demote(ctx, p.ID, domain.PriorityHigh, victim.Index)
	require.Error(t, err)
	assert.True(t, isUnavailable(err))

	rows := f.ledger.Rows()
	require.Len(t, rows, 10)
	assert.Equal(t, domain.PriorityHigh, rows[3].Priority)
	assert.Zero(t, f.observer.Downgrades)

	still, err := f.db.Stores().Pending.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, still.Claimed)
}

func TestResolutionKind_Terminal(t *testing.T) {
	assert.True(t, ResolutionPrioritized.Terminal())
	assert.True(t, ResolutionDowngraded.Terminal())
	assert.True(t, ResolutionDeleted.Terminal())
	assert.False(t, ResolutionCapacityExceeded.Terminal())
	assert.False(t, ResolutionNominationRequired.Terminal())
	assert.False(t, ResolutionStale.Terminal())
}
