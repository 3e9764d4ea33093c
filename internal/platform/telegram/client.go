package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/tasktracker/internal/config"
)

// MaxMessageLength is the Bot API limit on message text, in characters.
const MaxMessageLength = 4096

// Client calls the Bot API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	pollTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a Client for cfg.
func NewClient(cfg config.TelegramConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	pollTimeout := time.Duration(cfg.PollTimeoutSeconds) * time.Second
	c := &Client{
		baseURL:     strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken,
		pollTimeout: pollTimeout,
		// Long polls hold the connection for pollTimeout.
		httpClient: &http.Client{Timeout: pollTimeout + 15*time.Second},
		logger:     log.With("component", "telegram_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUpdates long-polls for updates with update_id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := map[string]any{
		"offset":          offset,
		"timeout":         int(c.pollTimeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var out []Update
	if err := call(ctx, c, "getUpdates", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts text to chatID. markup may be nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	req := map[string]any{"chat_id": chatID, "text": text}
	if markup != nil {
		req["reply_markup"] = markup
	}
	var out Message
	if err := call(ctx, c, "sendMessage", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditMessageText replaces the text and keyboard of a sent message. A nil
// markup removes the keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	if markup == nil {
		markup = EmptyKeyboard()
	}
	req := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"text":         text,
		"reply_markup": markup,
	}
	var out json.RawMessage
	return call(ctx, c, "editMessageText", req, &out)
}

// EditMessageReplyMarkup replaces the keyboard of a sent message. A nil
// markup removes it.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *InlineKeyboardMarkup) error {
	if markup == nil {
		markup = EmptyKeyboard()
	}
	req := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": markup,
	}
	var out json.RawMessage
	return call(ctx, c, "editMessageReplyMarkup", req, &out)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	req := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		req["text"] = text
	}
	var out bool
	return call(ctx, c, "answerCallbackQuery", req, &out)
}

func call[T any](ctx context.Context, c *Client, method string, body any, out *T) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The URL carries the token; log only the method.
		return fmt.Errorf("%w: %s: request failed", ErrTransport, method)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrTransport, method, err)
	}

	var decoded apiResponse[T]
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%w: %s: status %d: invalid JSON", ErrTransport, method, resp.StatusCode)
	}
	if !decoded.OK {
		return &APIError{Method: method, Code: decoded.ErrorCode, Description: decoded.Description}
	}
	*out = decoded.Result
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
