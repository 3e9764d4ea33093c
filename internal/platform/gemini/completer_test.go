package gemini

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	GenerateContentFn func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return f.GenerateContentFn(ctx, model, contents, cfg)
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content, FinishReason: genai.FinishReasonStop}},
	}
}

func TestCompleteReturnsText(t *testing.T) {
	var gotModel string
	var gotPrompt string
	var gotTemp float32
	models := &fakeModels{GenerateContentFn: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotPrompt = contents[0].Parts[0].Text
		gotTemp = *cfg.Temperature
		assert.Equal(t, SystemInstruction, cfg.SystemInstruction.Parts[0].Text)
		return textResponse("- Добавить ", "темную тему"), nil
	}}
	c := newCompleter(slog.Default(), models, "gemini-2.0-flash", 0.2)

	text, err := c.Complete(context.Background(), "prompt body")
	require.NoError(t, err)
	assert.Equal(t, "- Добавить темную тему", text)
	assert.Equal(t, "gemini-2.0-flash", gotModel)
	assert.Equal(t, "prompt body", gotPrompt)
	assert.InDelta(t, 0.2, gotTemp, 1e-6)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
		want error
	}{
		{name: "transport", err: errors.New("503"), want: generation.ErrTransportFailure},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: generation.ErrInvalidResponse},
		{
			name: "safety",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
			want: generation.ErrInvalidResponse,
		},
		{name: "no text", resp: textResponse(), want: generation.ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := &fakeModels{GenerateContentFn: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			}}
			c := newCompleter(slog.Default(), models, "m", 0)
			_, err := c.Complete(context.Background(), "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompleteEmptyPrompt(t *testing.T) {
	c := newCompleter(slog.Default(), &fakeModels{}, "m", 0)
	_, err := c.Complete(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestNewCompleterValidation(t *testing.T) {
	_, err := NewCompleter(context.Background(), nil, config.LLMConfig{})
	assert.Error(t, err)

	_, err = NewCompleter(context.Background(), slog.Default(), config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewCompleter(context.Background(), slog.Default(), config.LLMConfig{GeminiAPIKey: "k"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
