package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FuncTask is a Task backed by a function. It tracks its own status and result.
type FuncTask struct {
	id       uuid.UUID
	taskType string
	fn       func(ctx context.Context) (string, error)
	created  time.Time

	mu       sync.Mutex
	status   TaskStatus
	result   string
	err      error
	finished time.Time
}

var _ Task = (*FuncTask)(nil)

// NewFuncTask creates a pending task of taskType. fn returns a short
// human-readable summary on success.
func NewFuncTask(taskType string, fn func(ctx context.Context) (string, error)) *FuncTask {
	return &FuncTask{
		id:       uuid.New(),
		taskType: taskType,
		fn:       fn,
		created:  time.Now().UTC(),
		status:   TaskStatusPending,
	}
}

// ID returns the task's unique identifier
func (t *FuncTask) ID() uuid.UUID { return t.id }

// Type returns the task type identifier
func (t *FuncTask) Type() string { return t.taskType }

// Status returns the current task status
func (t *FuncTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Execute runs fn once and records the outcome.
func (t *FuncTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	t.status = TaskStatusProcessing
	t.mu.Unlock()

	result, err := t.fn(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = time.Now().UTC()
	t.result = result
	t.err = err
	if err != nil {
		t.status = TaskStatusFailed
	} else {
		t.status = TaskStatusCompleted
	}
	return err
}

// Snapshot is a point-in-time view of a task.
type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Status     TaskStatus `json:"status"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns the current view of t.
func (t *FuncTask) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		ID:        t.id,
		Type:      t.taskType,
		Status:    t.status,
		Result:    t.result,
		CreatedAt: t.created,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	if !t.finished.IsZero() {
		f := t.finished
		s.FinishedAt = &f
	}
	return s
}
