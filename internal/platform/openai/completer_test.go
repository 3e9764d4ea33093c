package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompleter(t *testing.T, handler http.HandlerFunc) *Completer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewCompleter(config.LLMConfig{
		OpenAIAPIKey: "sk-test",
		OpenAIURL:    srv.URL + "/v1/",
		ModelName:    "gpt-4o-mini",
		Temperature:  0.2,
	}, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestCompleteSendsChatRequest(t *testing.T) {
	c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "the prompt", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"- Задача"}}]}`))
	})

	text, err := c.Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "- Задача", text)
}

func TestCompleteMapsFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, want: generation.ErrTransportFailure},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`, want: generation.ErrTransportFailure},
		{name: "broken json", status: http.StatusOK, body: `{`, want: generation.ErrTransportFailure},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: generation.ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompleter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewCompleterValidation(t *testing.T) {
	_, err := NewCompleter(config.LLMConfig{ModelName: "m"}, nil, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewCompleter(config.LLMConfig{OpenAIAPIKey: "k"}, nil, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
