package extraction

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"text/template"
	"time"

	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/generation"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

//go:embed prompt.tmpl
var defaultPrompt string

// Recorder receives one observation per Extract call.
type Recorder interface {
	ObserveExtraction(outcome string, attempts, tasks int, d time.Duration)
}

// Config holds the retry and formatting policy of a Client.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Timeout     time.Duration
	// Location is used to render message timestamps. Defaults to UTC.
	Location *time.Location
	// PromptTemplatePath overrides the embedded template when set.
	// The template receives {{.Messages}}.
	PromptTemplatePath string
}

// DefaultConfig returns the production retry policy: five attempts, 1.5s base
// delay doubling per attempt, up to 0.5s jitter and a 60s overall deadline.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   1500 * time.Millisecond,
		MaxJitter:   500 * time.Millisecond,
		Timeout:     60 * time.Second,
		Location:    time.UTC,
	}
}

// Client is safe for concurrent use by different chats.
type Client struct {
	completer generation.Completer
	cfg       Config
	prompt    *template.Template
	logger    *slog.Logger
	recorder  Recorder

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
	now    func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Client) { c.jitter = jitter }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a Client. A zero field in cfg falls back to DefaultConfig.
func NewClient(completer generation.Completer, cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: completer cannot be nil", generation.ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	text := defaultPrompt
	if cfg.PromptTemplatePath != "" {
		content, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, cfg.PromptTemplatePath, err)
		}
		text = string(content)
	}
	tmpl, err := template.New("extraction").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	c := &Client{
		completer: completer,
		cfg:       cfg,
		prompt:    tmpl,
		logger:    log.With("component", "extraction"),
		sleep:     sleepContext,
		now:       time.Now,
	}
	c.jitter = func() time.Duration {
		if c.cfg.MaxJitter <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(c.cfg.MaxJitter)))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildPrompt renders the instruction template around the formatted messages.
func (c *Client) BuildPrompt(msgs []*domain.RawMessage) (string, error) {
	var buf bytes.Buffer
	data := struct{ Messages string }{Messages: FormatMessages(msgs, c.cfg.Location)}
	if err := c.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Backoff returns the wait before attempt+1 after attempt failed (attempt is 1-based),
// without jitter: BaseDelay * 2^(attempt-1).
func (c *Client) Backoff(attempt int) time.Duration {
	return time.Duration(float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
}

// Extract returns the distinct task strings found in msgs, oldest message first.
// An empty window returns no tasks without calling the model.
//
// Errors wrap generation.ErrTransportFailure once all attempts failed, or
// generation.ErrTimeout when the overall deadline expired first.
func (c *Client) Extract(ctx context.Context, msgs []*domain.RawMessage) ([]string, error) {
	if len(msgs) == 0 {
		return []string{}, nil
	}
	log := logger.FromContextOrDefault(ctx, c.logger)
	started := c.now()

	prompt, err := c.BuildPrompt(msgs)
	if err != nil {
		return nil, err
	}

	reply, attempts, err := c.completeWithRetry(ctx, log, prompt)
	elapsed := c.now().Sub(started)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, generation.ErrTimeout) {
			outcome = "timeout"
		}
		c.observe(outcome, attempts, 0, elapsed)
		return nil, err
	}

	tasks := ParseTasks(reply)
	log.Info("extraction finished",
		"messages", len(msgs),
		"tasks", len(tasks),
		"attempts", attempts,
		"duration_ms", elapsed.Milliseconds())
	c.observe("ok", attempts, len(tasks), elapsed)
	return tasks, nil
}

func (c *Client) completeWithRetry(ctx context.Context, log *slog.Logger, prompt string) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		reply, err := c.completer.Complete(callCtx, prompt)
		if err == nil {
			return reply, attempt, nil
		}
		lastErr = err

		if e := c.deadlineErr(ctx, callCtx); e != nil {
			log.Warn("extraction aborted", "attempt", attempt, "error", e)
			return "", attempt, e
		}

		log.Warn("model call failed",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"error", err)
		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := c.Backoff(attempt) + c.jitter()
		if err := c.sleep(callCtx, delay); err != nil {
			if e := c.deadlineErr(ctx, callCtx); e != nil {
				return "", attempt, e
			}
			return "", attempt, err
		}
	}

	if errors.Is(lastErr, generation.ErrTransportFailure) {
		return "", c.cfg.MaxAttempts, lastErr
	}
	return "", c.cfg.MaxAttempts, fmt.Errorf("%w: %v", generation.ErrTransportFailure, lastErr)
}

// deadlineErr distinguishes our own deadline from a caller cancellation.
func (c *Client) deadlineErr(parent, callCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if callCtx.Err() != nil {
		return fmt.Errorf("%w after %s", generation.ErrTimeout, c.cfg.Timeout)
	}
	return nil
}

func (c *Client) observe(outcome string, attempts, tasks int, d time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveExtraction(outcome, attempts, tasks, d)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
