package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/internal/infra"
)

// ErrNoToken is returned when the bot token is empty.
var ErrNoToken = errors.New("notify: telegram bot token not configured")

// APIError is a Bot API rejection.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Telegram is a minimal Bot API client.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
	limiter *infra.RateLimiter
}

// TelegramOption configures the client.
type TelegramOption func(*Telegram)

// WithTelegramBaseURL points the client at another API host.
func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *Telegram) { t.baseURL = strings.TrimRight(url, "/") }
}

// WithTelegramHTTPClient sets a custom HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.client = c }
}

// WithTelegramRateLimiter throttles outgoing calls.
func WithTelegramRateLimiter(rl *infra.RateLimiter) TelegramOption {
	return func(t *Telegram) { t.limiter = rl }
}

// NewTelegram creates a client for the given bot token.
func NewTelegram(token string, opts ...TelegramOption) (*Telegram, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	t := &Telegram{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ── Bot API ──

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// BotInfo is the getMe result.
type BotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat identifies a conversation seen in getUpdates.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username"`
	Title    string `json:"title"`
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat Chat `json:"chat"`
	} `json:"message"`
}

// Send implements Transport via sendMessage.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == "" {
		return errors.New("notify: chat id not configured")
	}
	if n := WrappedLength(msg.Text); n > MaxMessageLength {
		return fmt.Errorf("notify: message length %d exceeds %d", n, MaxMessageLength)
	}
	return t.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                msg.ChatID,
		Text:                  msg.Text,
		ParseMode:             msg.ParseMode,
		DisableWebPagePreview: true,
	}, nil)
}

// Verify checks the token with getMe.
func (t *Telegram) Verify(ctx context.Context) (*BotInfo, error) {
	var info BotInfo
	if err := t.call(ctx, "getMe", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LatestChat returns the chat of the most recent update, used to discover
// the chat id after messaging the bot once.
func (t *Telegram) LatestChat(ctx context.Context) (*Chat, error) {
	var updates []update
	if err := t.call(ctx, "getUpdates", nil, &updates); err != nil {
		return nil, err
	}
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].Message != nil {
			c := updates[i].Message.Chat
			return &c, nil
		}
	}
	return nil, errors.New("notify: no updates yet; send the bot a message first")
}

func (t *Telegram) call(ctx context.Context, method string, body any, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	httpMethod := http.MethodGet
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: marshal: %w", method, err)
		}
		httpMethod = http.MethodPost
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, t.baseURL+"/bot"+t.token+"/"+method, payload)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		return fmt.Errorf("telegram %s: %s", method, redact(err.Error(), t.token))
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("telegram %s: status %d: decode: %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		code := ar.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: ar.Description}
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

// FormatChatID renders a numeric chat id for configuration.
func FormatChatID(id int64) string { return strconv.FormatInt(id, 10) }
