package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "original context must stay unchanged")
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		assert.False(t, seen[id], "duplicate trace ID")
		seen[id] = true
	}
}

func TestGenerateFallbackTraceID(t *testing.T) {
	id := generateFallbackTraceID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, generateFallbackTraceID())
}

func TestSubject(t *testing.T) {
	_, ok := GetSubject(context.Background())
	assert.False(t, ok)

	_, ok = GetSubject(WithSubject(context.Background(), ""))
	assert.False(t, ok)

	subject, ok := GetSubject(WithSubject(context.Background(), "ops"))
	assert.True(t, ok)
	assert.Equal(t, "ops", subject)
}
