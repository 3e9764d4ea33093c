package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/api/shared"
	"github.com/phrazzld/tasktracker/internal/batch"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/phrazzld/tasktracker/internal/task"
)

// Jobs queues and reports background jobs.
type Jobs interface {
	Submit(ctx context.Context, taskType string, fn func(ctx context.Context) (string, error)) (uuid.UUID, error)
	Get(id uuid.UUID) (task.Snapshot, bool)
}

// Processor runs the extraction pipeline.
type Processor interface {
	ProcessChatNow(ctx context.Context, chatID int64) (batch.Result, error)
	ProcessChatRange(ctx context.Context, chatID int64, since, until time.Time) (batch.Result, error)
	RunHourlyPass(ctx context.Context) (batch.PassResult, error)
}

// Prioritizer exposes the pending queue and the corrective recount.
type Prioritizer interface {
	ListPending(ctx context.Context, chatID int64) ([]*domain.PendingPrioritization, error)
	Recount(ctx context.Context) ([]ledger.Row, error)
}

// StaffDirectory manages the staff allow-list table.
type StaffDirectory interface {
	Add(ctx context.Context, userID int64, username string) error
	Remove(ctx context.Context, userID int64) error
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	jobs        Jobs
	processor   Processor
	prioritizer Prioritizer
	staff       StaffDirectory
	now         func() time.Time
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	jobs Jobs,
	processor Processor,
	prioritizer Prioritizer,
	staff StaffDirectory,
	log *slog.Logger,
) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{
		jobs:        jobs,
		processor:   processor,
		prioritizer: prioritizer,
		staff:       staff,
		now:         time.Now,
		logger:      log.With("component", "admin_api"),
	}
}

// ProcessChat handles POST /chats/{chatID}/process.
func (h *AdminHandler) ProcessChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	h.submit(w, r, task.TaskTypeProcessChat, func(ctx context.Context) (string, error) {
		res, err := h.processor.ProcessChatNow(ctx, chatID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("chat %d: %d messages, %d tasks", chatID, res.Messages, res.Tasks()), nil
	})
}

// ParseChat handles POST /chats/{chatID}/parse. Days defaults to 1.
func (h *AdminHandler) ParseChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	req := ParseRequest{Days: 1}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, shared.SanitizeValidationError(err))
		return
	}

	until := h.now().UTC()
	since := until.Add(-time.Duration(req.Days) * 24 * time.Hour)
	h.submit(w, r, task.TaskTypeParseRange, func(ctx context.Context) (string, error) {
		res, err := h.processor.ProcessChatRange(ctx, chatID, since, until)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("chat %d: %d messages in %d days, %d tasks", chatID, res.Messages, req.Days, res.Tasks()), nil
	})
}

// RunPass handles POST /passes.
func (h *AdminHandler) RunPass(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, task.TaskTypeHourlyPass, func(ctx context.Context) (string, error) {
		res, err := h.processor.RunHourlyPass(ctx)
		if err != nil {
			return "", err
		}
		if res.Skipped {
			return "skipped: a pass is already running", nil
		}
		return fmt.Sprintf("pass %s: %d chats, %d tasks, %d failures", res.ID, res.Chats, res.Tasks, res.Failures), nil
	})
}

// Recount handles POST /recount.
func (h *AdminHandler) Recount(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, task.TaskTypeRecount, func(ctx context.Context) (string, error) {
		rows, err := h.prioritizer.Recount(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d rows downgraded", len(rows)), nil
	})
}

// GetJob handles GET /jobs/{jobID}.
func (h *AdminHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job id")
		return
	}
	snap, ok := h.jobs.Get(id)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snap)
}

// ListPending handles GET /chats/{chatID}/pending.
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	open, err := h.prioritizer.ListPending(r.Context(), chatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]PendingResponse, 0, len(open))
	for _, p := range open {
		out = append(out, pendingToResponse(p))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// AddStaff handles POST /staff.
func (h *AdminHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, shared.SanitizeValidationError(err))
		return
	}
	if err := h.staff.Add(r.Context(), req.UserID, req.Username); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log(r).Info("staff member added", "user_id", req.UserID)
	w.WriteHeader(http.StatusCreated)
}

// RemoveStaff handles DELETE /staff/{userID}.
func (h *AdminHandler) RemoveStaff(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := h.staff.Remove(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log(r).Info("staff member removed", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid chat id")
		return 0, false
	}
	return id, true
}

// submit queues fn and answers 202 with the job id. The job runs detached
// from the request context.
func (h *AdminHandler) submit(
	w http.ResponseWriter,
	r *http.Request,
	taskType string,
	fn func(ctx context.Context) (string, error),
) {
	id, err := h.jobs.Submit(context.WithoutCancel(r.Context()), taskType, fn)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log(r).Info("job queued", "job_id", id, "type", taskType)
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAccepted{JobID: id, Type: taskType})
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

func (h *AdminHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}
