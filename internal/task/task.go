package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a submitted job.
type TaskStatus string

// A job moves pending → processing → completed or failed, never backwards.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Job types submitted by the bot commands and the admin API.
const (
	// TaskTypeProcessChat extracts tasks from a chat's trailing window.
	TaskTypeProcessChat = "process_chat"
	// TaskTypeParseRange re-extracts tasks from a historical window.
	TaskTypeParseRange = "parse_range"
	// TaskTypeRecount runs the corrective capacity recount.
	TaskTypeRecount = "recount"
	// TaskTypeHourlyPass runs the hourly pass on demand.
	TaskTypeHourlyPass = "hourly_pass"
)

// Task is one operator-triggered job. Status must be safe to read while
// Execute runs on a worker.
type Task interface {
	ID() uuid.UUID
	Type() string
	Status() TaskStatus
	Execute(ctx context.Context) error
}

// Source hands queued jobs to workers. The channel is closed once the
// source stops accepting jobs and has been drained.
type Source interface {
	Tasks() <-chan Task
}
