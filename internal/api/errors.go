package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/tasktracker/internal/batch"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/store"
	"github.com/phrazzld/tasktracker/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidChatID),
		errors.Is(err, batch.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, ledger.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client message for err that leaks no internals.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, store.ErrStaffExists):
		return "Staff member already exists"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"
	case errors.Is(err, domain.ErrInvalidChatID):
		return "Invalid chat id"
	case errors.Is(err, batch.ErrInvalidRange):
		return "Invalid time range"
	case errors.Is(err, task.ErrQueueFull):
		return "Job queue is full, retry later"
	case errors.Is(err, task.ErrQueueClosed):
		return "Server is shutting down"
	case errors.Is(err, ledger.ErrUnavailable):
		return "Task ledger unavailable"
	default:
		return "An unexpected error occurred"
	}
}
