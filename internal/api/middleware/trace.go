package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktracker/internal/api/shared"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

// NewTraceMiddleware returns middleware that assigns each request a trace id
// and carries a logger tagged with it in the request context.
func NewTraceMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			reqLog := log.With("trace_id", shared.GetTraceID(ctx))
			ctx = logger.WithLogger(ctx, reqLog)

			reqLog.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
