package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestLogBuffer is a thread-safe buffer for capturing JSON log output in tests.
type TestLogBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements io.Writer.
func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Entries parses every captured line as a JSON log entry.
func (b *TestLogBuffer) Entries() ([]map[string]any, error) {
	var out []map[string]any
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// testLogPipe forwards log lines to the test's output.
type testLogPipe struct {
	t testing.TB
}

func (p testLogPipe) Write(data []byte) (int, error) {
	p.t.Helper()
	p.t.Log(strings.TrimRight(string(data), "\n"))
	return len(data), nil
}

// NewTestLogger returns a debug-level logger that writes to t.Log, so output
// only shows up for failing or verbose tests.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewJSONHandler(testLogPipe{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// GetTestLogger creates a debug-level logger whose output is captured in the returned buffer.
func GetTestLogger(t testing.TB) (*slog.Logger, *TestLogBuffer) {
	t.Helper()
	buf := &TestLogBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
