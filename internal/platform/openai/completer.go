// Package openai implements generation.Completer on the OpenAI chat
// completions HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/generation"
)

// SystemPrompt frames the model as a task extractor.
const SystemPrompt = "Ты эксперт по извлечению задач."

// maxErrorBody bounds how much of an error response is quoted in errors.
const maxErrorBody = 512

// Completer implements generation.Completer.
type Completer struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	logger      *slog.Logger
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter builds a completer from the LLM configuration. A nil httpClient
// uses http.DefaultClient; the extraction client bounds each call through its context.
func NewCompleter(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*Completer, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.OpenAIURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &Completer{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(base, "/"),
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		logger:      logger.With("component", "openai"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements generation.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", generation.ErrTransportFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", generation.ErrTransportFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "OpenAI API returned error status", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d: %s", generation.ErrTransportFailure, resp.StatusCode, snippet(raw))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", generation.ErrTransportFailure, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%w: %s", generation.ErrTransportFailure, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.Join(generation.ErrInvalidResponse, errors.New("no choices"))
	}
	return decoded.Choices[0].Message.Content, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
