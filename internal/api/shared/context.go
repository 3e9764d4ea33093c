package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the admin API.
type ContextKey string

const (
	// SubjectContextKey holds the authenticated operator subject.
	SubjectContextKey ContextKey = "subject"

	// TraceIDKey holds the request trace id.
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace id.
	TraceIDLength = 16
)

// SetTraceID returns ctx carrying a fresh trace id.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace id in ctx, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithSubject returns ctx carrying the operator subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectContextKey, subject)
}

// GetSubject returns the operator subject in ctx.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectContextKey).(string)
	return subject, ok && subject != ""
}

// generateTraceID returns 32 hex characters. A random UUID stands in when
// crypto/rand fails.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate random trace ID", "error", err, "bytes_read", n)
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
