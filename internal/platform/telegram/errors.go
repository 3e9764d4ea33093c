package telegram

import (
	"errors"
	"fmt"
)

// ErrTransport is returned when the Bot API could not be reached or answered garbage.
var ErrTransport = errors.New("telegram transport failure")

// APIError is an error reported by the Bot API itself.
type APIError struct {
	Method      string
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

// IsNotModified reports whether err is the API's "message is not modified"
// rejection, which edits of an unchanged message produce.
func IsNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == 400 &&
		containsFold(apiErr.Description, "message is not modified")
}
