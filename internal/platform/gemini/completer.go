package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/generation"
	"google.golang.org/genai"
)

// SystemInstruction frames the model as a task extractor.
const SystemInstruction = "Ты эксперт по извлечению задач."

// contentGenerator is the subset of *genai.Models used by Completer.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Completer implements generation.Completer with Gemini.
type Completer struct {
	logger      *slog.Logger
	models      contentGenerator
	model       string
	temperature float32
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter creates a Gemini completer from the LLM configuration.
func NewCompleter(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Completer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newCompleter(logger, client.Models, cfg.ModelName, cfg.Temperature), nil
}

func newCompleter(logger *slog.Logger, models contentGenerator, model string, temperature float32) *Completer {
	return &Completer{
		logger:      logger.With("component", "gemini"),
		models:      models,
		model:       model,
		temperature: temperature,
	}
}

// Complete implements generation.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction}},
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Gemini API call error", "error", err, "model", c.model)
		return "", fmt.Errorf("%w: %v", generation.ErrTransportFailure, err)
	}

	text, err := responseText(resp)
	if err != nil {
		c.logger.WarnContext(ctx, "Gemini returned no usable text", "error", err)
		return "", err
	}
	c.logger.DebugContext(ctx, "Gemini API call successful", "reply_length", len(text))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrInvalidResponse)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts", generation.ErrInvalidResponse)
	}
	return b.String(), nil
}
