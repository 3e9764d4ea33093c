package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("task queue is closed")
	// ErrQueueFull is returned when the buffer has no free slot. Callers
	// reject the request instead of blocking the interactive path.
	ErrQueueFull = errors.New("task queue is full")
)

// TaskQueue is a bounded FIFO of jobs. Enqueue never blocks.
type TaskQueue struct {
	mu     sync.RWMutex
	ch     chan Task
	closed bool
	log    *slog.Logger
}

var _ Source = (*TaskQueue)(nil)

// NewTaskQueue creates a queue holding at most size jobs.
func NewTaskQueue(size int, log *slog.Logger) *TaskQueue {
	if log == nil {
		log = slog.Default()
	}
	if size < 1 {
		size = 1
	}
	return &TaskQueue{
		ch:  make(chan Task, size),
		log: log.With("component", "task_queue"),
	}
}

// Enqueue adds t or fails with ErrQueueFull or ErrQueueClosed.
func (q *TaskQueue) Enqueue(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- t:
		q.log.Debug("job queued", "job_id", t.ID(), "job_type", t.Type(), "depth", len(q.ch))
		return nil
	default:
		return fmt.Errorf("%w: %d jobs waiting", ErrQueueFull, cap(q.ch))
	}
}

// Len reports how many jobs are waiting.
func (q *TaskQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
	q.log.Info("task queue closed", "pending", len(q.ch))
}

// Tasks implements Source.
func (q *TaskQueue) Tasks() <-chan Task {
	return q.ch
}
