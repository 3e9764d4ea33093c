package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker/internal/domain"
)

// ParseRequest is the body of POST /chats/{chatID}/parse.
type ParseRequest struct {
	Days int `json:"days" validate:"gte=1,lte=365"`
}

// StaffRequest is the body of POST /staff.
type StaffRequest struct {
	UserID   int64  `json:"user_id"  validate:"required,gt=0"`
	Username string `json:"username" validate:"max=64"`
}

// JobAccepted is returned for every queued operation.
type JobAccepted struct {
	JobID uuid.UUID `json:"job_id"`
	Type  string    `json:"type"`
}

// PendingResponse describes an open pending record.
type PendingResponse struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	TaskID    int64     `json:"task_id,omitempty"`
	Text      string    `json:"text"`
	Claimed   bool      `json:"claimed"`
	CreatedAt time.Time `json:"created_at"`
}

func pendingToResponse(p *domain.PendingPrioritization) PendingResponse {
	return PendingResponse{
		ID:        p.ID,
		ChatID:    p.ChatID,
		TaskID:    p.TaskID,
		Text:      p.Text,
		Claimed:   p.Claimed,
		CreatedAt: p.CreatedAt,
	}
}
