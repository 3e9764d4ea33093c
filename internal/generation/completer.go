package generation

import "context"

// Completer performs a single chat-completion call. It does not retry;
// retry and timeout policy belong to the caller.
type Completer interface {
	// Complete sends prompt to the model and returns its raw text reply.
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts an ordinary function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f(ctx, prompt).
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
