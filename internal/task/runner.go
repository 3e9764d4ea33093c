package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// HistorySize bounds how many finished tasks stay visible to Get.
	HistorySize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
		HistorySize: 200,
	}
}

// TaskRunner couples a TaskQueue and a WorkerPool and remembers submitted
// tasks so their outcome can be queried.
type TaskRunner struct {
	queue  *TaskQueue
	pool   *WorkerPool
	config TaskRunnerConfig
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[uuid.UUID]*FuncTask
	order []uuid.UUID
}

// NewTaskRunner creates a stopped TaskRunner.
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultTaskRunnerConfig().HistorySize
	}
	queue := NewTaskQueue(config.QueueSize, logger)
	return &TaskRunner{
		queue:  queue,
		pool:   NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		config: config,
		logger: logger.With("component", "task_runner"),
		tasks:  make(map[uuid.UUID]*FuncTask),
	}
}

// SetErrorHandler sets the handler called for failed tasks. Call before Start.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit queues fn as a task of taskType and returns its id.
func (r *TaskRunner) Submit(ctx context.Context, taskType string, fn func(ctx context.Context) (string, error)) (uuid.UUID, error) {
	t := NewFuncTask(taskType, fn)
	r.remember(t)
	if err := r.queue.Enqueue(t); err != nil {
		r.forget(t.ID())
		return uuid.Nil, fmt.Errorf("submit %s task: %w", taskType, err)
	}
	return t.ID(), nil
}

// Get returns the snapshot of a remembered task.
func (r *TaskRunner) Get(id uuid.UUID) (Snapshot, bool) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return t.Snapshot(), true
}

// Start launches the workers.
func (r *TaskRunner) Start() {
	r.pool.Start()
}

// Stop closes the queue, cancels running tasks and waits for the workers.
func (r *TaskRunner) Stop() {
	r.queue.Close()
	r.pool.Stop()
}

func (r *TaskRunner) remember(t *FuncTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID()] = t
	r.order = append(r.order, t.ID())
	for len(r.order) > r.config.HistorySize {
		oldest := r.order[0]
		if s := r.tasks[oldest].Status(); s == TaskStatusPending || s == TaskStatusProcessing {
			break
		}
		delete(r.tasks, oldest)
		r.order = r.order[1:]
	}
}

func (r *TaskRunner) forget(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
