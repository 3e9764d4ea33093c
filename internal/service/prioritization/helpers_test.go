package prioritization

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var errSheetsDown = fmt.Errorf("%w: sheets down", ledger.ErrUnavailable)

// flakyLedger wraps a Memory ledger and fails the operations whose error is set.
type flakyLedger struct {
	*ledger.Memory
	ListErr   error
	AppendErr error
	UpdateErr error
	DeleteErr error
	Appends   int
	// BeforeAppend runs before each append, standing in for a decision that
	// lands while another one is writing to the ledger.
	BeforeAppend func()
}

func newFlakyLedger() *flakyLedger {
	return &flakyLedger{Memory: ledger.NewMemory()}
}

func (f *flakyLedger) AppendRow(ctx context.Context, project, description string, p domain.Priority) error {
	f.Appends++
	if f.BeforeAppend != nil {
		f.BeforeAppend()
	}
	if f.AppendErr != nil {
		return f.AppendErr
	}
	return f.Memory.AppendRow(ctx, project, description, p)
}

func (f *flakyLedger) ListImportantRows(ctx context.Context) ([]ledger.Row, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Memory.ListImportantRows(ctx)
}

func (f *flakyLedger) UpdatePriority(ctx context.Context, row int, p domain.Priority) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.Memory.UpdatePriority(ctx, row, p)
}

func (f *flakyLedger) DeleteRowByDescription(ctx context.Context, text string) (int, bool, error) {
	if f.DeleteErr != nil {
		return 0, false, f.DeleteErr
	}
	return f.Memory.DeleteRowByDescription(ctx, text)
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	Resolutions  map[string]int
	LedgerErrors map[string]int
	Downgrades   int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		Resolutions:  make(map[string]int),
		LedgerErrors: make(map[string]int),
	}
}

func (o *recordingObserver) ObserveResolution(kind string) { o.Resolutions[kind]++ }
func (o *recordingObserver) ObserveLedgerError(op string)  { o.LedgerErrors[op]++ }
func (o *recordingObserver) ObserveDowngrade()             { o.Downgrades++ }

// seedImportant appends n important rows named "existing N".
func seedImportant(t *testing.T, l ledger.Ledger, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, l.AppendRow(context.Background(), "Client", fmt.Sprintf("existing %d", i), domain.PriorityHigh))
	}
}

type fixture struct {
	db       *memstore.DB
	ledger   *flakyLedger
	observer *recordingObserver
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	l := newFlakyLedger()
	obs := newRecordingObserver()
	log := logger.NewTestLogger(t)
	enforcer := NewEnforcer(l, DefaultImportantCap, log, obs)
	projects, err := ledger.NewProjects("Studio", map[string]string{"-100": "Acme"})
	require.NoError(t, err)
	svc, err := NewService(db.Stores(), db, l, enforcer, projects, log, obs)
	require.NoError(t, err)
	return &fixture{db: db, ledger: l, observer: obs, svc: svc}
}

// batch saves one message per text for chatID and opens a pending record
// for each task, every task carrying the whole batch as its provenance.
func (f *fixture) batch(t *testing.T, chatID int64, messages []string, tasks ...string) []*domain.PendingPrioritization {
	t.Helper()
	return f.batchFrom(t, chatID, 1, messages, tasks...)
}

// batchFrom is batch with chat message ids starting at firstMessageID, so
// several batches can share one chat.
func (f *fixture) batchFrom(
	t *testing.T,
	chatID, firstMessageID int64,
	messages []string,
	tasks ...string,
) []*domain.PendingPrioritization {
	t.Helper()
	ctx := context.Background()
	st := f.db.Stores()

	var ids []int64
	for i, text := range messages {
		msg, err := domain.NewRawMessage(chatID, firstMessageID+int64(i), "client", "Client", text, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		_, err = st.Messages.Save(ctx, msg)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	var out []*domain.PendingPrioritization
	for _, text := range tasks {
		task, err := domain.NewProcessedTask(chatID, text, ids)
		require.NoError(t, err)
		require.NoError(t, st.Tasks.Create(ctx, task))
		p, err := f.svc.Enqueue(ctx, task)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// processed reports the processed flag of every stored message by text.
func (f *fixture) processed() map[string]bool {
	out := make(map[string]bool)
	for _, m := range f.db.Messages() {
		out[m.Text] = m.Processed
	}
	return out
}

func (f *fixture) processedCount() int {
	n := 0
	for _, m := range f.db.Messages() {
		if m.Processed {
			n++
		}
	}
	return n
}

func isUnavailable(err error) bool { return errors.Is(err, ledger.ErrUnavailable) }
