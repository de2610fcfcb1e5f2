// Package telegram implements the Telegram channel using the Telegram Bot
// API directly via HTTP — no external dependencies.
//
// The bot serves exactly one user. When no chat ID is configured yet, /start
// replies with the sender's chat ID so it can be added to the config; any
// other chat is refused.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jholhewres/daybrief/pkg/daybrief/channels"
)

// Telegram message hard limit.
const maxMessageLen = 4096

// Config holds Telegram channel configuration.
type Config struct {
	// Token is the Telegram Bot API token (from @BotFather).
	Token string `yaml:"token"`

	// ChatID is the single authorized chat. Empty enables the bootstrap
	// reply that tells the user their chat ID.
	ChatID string `yaml:"chat_id"`
}

// Telegram implements channels.Channel and channels.NotifyTarget.
type Telegram struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client

	// baseURL is the Bot API base URL (https://api.telegram.org/bot<token>).
	baseURL string

	// messages is the channel for incoming messages forwarded to the assistant.
	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	// offset is the last processed update ID + 1.
	offset int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Telegram channel instance.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		client:   &http.Client{Timeout: 60 * time.Second},
		baseURL:  "https://api.telegram.org/bot" + cfg.Token,
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// SetBaseURL overrides the Bot API endpoint (used in tests).
func (t *Telegram) SetBaseURL(baseURL string) { t.baseURL = baseURL }

// ---------- Channel Interface ----------

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect verifies the token and starts the long-polling loop.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token is required")
	}

	// Prevent double-connect goroutine leak.
	if t.connected.Load() {
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(ctx)

	me, err := t.getMe(t.ctx)
	if err != nil {
		return fmt.Errorf("telegram: failed to verify token: %w", err)
	}
	t.logger.Info("telegram: connected", "bot", me.Username, "id", me.ID)
	t.connected.Store(true)

	go t.pollLoop()

	return nil
}

// Disconnect stops the polling loop.
func (t *Telegram) Disconnect() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.connected.Store(false)
	t.logger.Info("telegram: disconnected")
	return nil
}

// Send sends a text message to the specified chat, splitting it when it
// exceeds the Telegram message limit.
func (t *Telegram) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	if !t.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", to, err)
	}

	for _, part := range channels.Split(message.Content, maxMessageLen) {
		payload := map[string]any{
			"chat_id": chatID,
			"text":    part,
		}
		if message.ReplyTo != "" {
			if msgID, e := strconv.ParseInt(message.ReplyTo, 10, 64); e == nil {
				payload["reply_parameters"] = map[string]any{"message_id": msgID}
			}
		}
		if _, err := t.apiCall(ctx, "sendMessage", payload); err != nil {
			return err
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (t *Telegram) Receive() <-chan *channels.IncomingMessage {
	return t.messages
}

// IsConnected returns true if the bot is connected.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

// Health returns the channel health status.
func (t *Telegram) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := t.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     t.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(t.errorCount.Load()),
	}
}

// ---------- NotifyTarget Interface ----------

// NotifyUser pushes text to the configured chat.
func (t *Telegram) NotifyUser(ctx context.Context, text string) error {
	if t.cfg.ChatID == "" {
		return channels.ErrNoRecipient
	}
	if !t.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	return t.Send(ctx, t.cfg.ChatID, &channels.OutgoingMessage{Content: text})
}

// ---------- Internal Methods ----------

// pollLoop runs the getUpdates long-polling loop with exponential backoff
// on errors.
func (t *Telegram) pollLoop() {
	t.logger.Info("telegram: polling started")
	backoff := time.Second

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info("telegram: polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(t.offset, 100, 30)
		if err != nil {
			t.errorCount.Add(1)
			t.logger.Warn("telegram: getUpdates error", "error", err, "backoff", backoff)
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		t.errorCount.Store(0)

		for _, u := range updates {
			if u.UpdateID >= t.offset {
				t.offset = u.UpdateID + 1
			}
			t.processUpdate(u)
		}
	}
}

// processUpdate applies the single-user authorization policy and forwards
// authorized messages to the assistant.
func (t *Telegram) processUpdate(u tgUpdate) {
	msg := u.Message
	if msg == nil || msg.Text == "" {
		return
	}

	chatIDStr := strconv.FormatInt(msg.Chat.ID, 10)

	// Bootstrap: no chat configured yet. Tell the sender their chat ID so
	// they can add it to the config, but process nothing.
	if t.cfg.ChatID == "" {
		t.logger.Info("telegram: unconfigured chat, sending bootstrap reply", "chat", chatIDStr)
		t.reply(msg.Chat.ID, fmt.Sprintf(
			"👋 Welcome! Your Chat ID is: %s\n\n"+
				"Add it to your config as telegram.chat_id (or set TELEGRAM_CHAT_ID) "+
				"and restart to enable messaging.", chatIDStr))
		return
	}

	if chatIDStr != t.cfg.ChatID {
		t.logger.Warn("telegram: message from unauthorized chat", "chat", chatIDStr)
		t.reply(msg.Chat.ID, "⛔ Unauthorized. This bot is configured for a specific user.")
		return
	}

	fromName := ""
	if msg.From != nil {
		fromName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if fromName == "" {
			fromName = msg.From.Username
		}
	}

	incoming := &channels.IncomingMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Channel:   "telegram",
		From:      chatIDStr,
		FromName:  fromName,
		ChatID:    chatIDStr,
		Content:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	t.lastMsg.Store(time.Now())

	select {
	case t.messages <- incoming:
	default:
		t.logger.Warn("telegram: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// reply sends text directly, outside the normal dispatch path.
func (t *Telegram) reply(chatID int64, text string) {
	if _, err := t.apiCall(t.ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text}); err != nil {
		t.logger.Warn("telegram: reply failed", "chat", chatID, "error", err)
	}
}

// ---------- Telegram Bot API Types ----------

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID int     `json:"message_id"`
	From      *tgUser `json:"from"`
	Chat      tgChat  `json:"chat"`
	Date      int     `json:"date"`
	Text      string  `json:"text"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type tgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type tgBotUser struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// ---------- API Helpers ----------

// apiCall makes a POST request to the Telegram Bot API under the caller's
// context.
func (t *Telegram) apiCall(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	url := t.baseURL + "/" + method
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, result.Description)
	}
	return result.Result, nil
}

// getMe verifies the bot token and returns bot info.
func (t *Telegram) getMe(ctx context.Context) (*tgBotUser, error) {
	data, err := t.apiCall(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user tgBotUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("telegram: parsing getMe: %w", err)
	}
	return &user, nil
}

// getUpdates fetches new updates using long polling.
func (t *Telegram) getUpdates(offset int64, limit, timeoutSecs int) ([]tgUpdate, error) {
	data, err := t.apiCall(t.ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"limit":           limit,
		"timeout":         timeoutSecs,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}
	var updates []tgUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("telegram: parsing updates: %w", err)
	}
	return updates, nil
}

// Compile-time interface verification.
var (
	_ channels.Channel      = (*Telegram)(nil)
	_ channels.NotifyTarget = (*Telegram)(nil)
)
