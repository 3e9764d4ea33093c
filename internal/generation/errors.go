package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrTransportFailure is returned when the model call fails at the transport,
	// rate-limit or response-decoding level. Callers treat it as retryable.
	ErrTransportFailure = errors.New("language model call failed")

	// ErrTimeout is returned when the overall deadline for a completion expires,
	// regardless of how many attempts remain.
	ErrTimeout = errors.New("language model call timed out")

	// ErrInvalidResponse is returned when the model response carries no text.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrInvalidConfig is returned when a completer configuration is invalid
	ErrInvalidConfig = errors.New("invalid completer configuration")
)
