package telegram

import (
	"context"
	"time"
)

// UpdateSource yields batches of updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)
}

// Poll feeds updates from src to handle until ctx is cancelled. Failed polls
// are retried with a capped backoff. The handler runs on the polling goroutine.
func Poll(ctx context.Context, src UpdateSource, handle func(ctx context.Context, u Update), log Logger) error {
	var offset int64
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := src.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("polling for updates failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handle(ctx, u)
		}
	}
}

// Logger is the subset of *slog.Logger used by Poll.
type Logger interface {
	Warn(msg string, args ...any)
}
