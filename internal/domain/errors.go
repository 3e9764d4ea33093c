package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPriority is returned when a priority name is not recognized.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrEmptyTaskText is returned when a task or pending record has no text.
	ErrEmptyTaskText = errors.New("task text cannot be empty")

	// ErrEmptyMessageText is returned when a raw message has no text.
	ErrEmptyMessageText = errors.New("message text cannot be empty")

	// ErrInvalidChatID is returned when a chat ID is zero.
	ErrInvalidChatID = errors.New("invalid chat ID")
)
