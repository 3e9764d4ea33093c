package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithLogger(t *testing.T) (*http.Request, *logger.TestLogBuffer) {
	t.Helper()
	log, buf := logger.GetTestLogger(t)
	ctx := context.WithValue(context.Background(), TraceIDKey, "test-trace-id")
	ctx = logger.WithLogger(ctx, log)
	return httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx), buf
}

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusAccepted, map[string]interface{}{"job_id": "abc"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"job_id":"abc"}`, w.Body.String())
}

type unencodable struct {
	Fn func() `json:"fn"`
}

func TestRespondWithJSONEncodingError(t *testing.T) {
	req, buf := requestWithLogger(t)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, unencodable{Fn: func() {}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	req, _ := requestWithLogger(t)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Invalid request", response.Error)
	assert.Equal(t, "test-trace-id", response.TraceID)
}

func TestRespondWithErrorNoTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "Unauthorized")

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Unauthorized", response.Error)
	assert.Empty(t, response.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		elevate   bool
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "DEBUG"},
		{name: "elevated client error", status: http.StatusUnauthorized, elevate: true, wantLevel: "WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, buf := requestWithLogger(t)
			w := httptest.NewRecorder()
			var opts []ResponseOption
			if tc.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}

			RespondWithErrorAndLog(w, req, tc.status, "request failed",
				errors.New("dial postgres://app:s3cret@db:5432/tasks"), opts...)

			assert.Equal(t, tc.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "request failed", response.Error)
			assert.Equal(t, "test-trace-id", response.TraceID)

			entries, err := buf.Entries()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.wantLevel, entries[0]["level"])
			assert.Equal(t, "test-trace-id", entries[0]["trace_id"])
			assert.Equal(t, "*errors.errorString", entries[0]["error_type"])
			assert.NotContains(t, entries[0]["error"], "s3cret")
			assert.NotContains(t, w.Body.String(), "postgres")
		})
	}
}
