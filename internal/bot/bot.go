package bot

import (
	"context"
	"strings"

	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/bridge"
	"github.com/nerrad567/relay-bridge/internal/device"
)

// Button is one inline keyboard button. Data carries a callback token;
// URL buttons open a link instead.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is an inline keyboard layout.
type Keyboard struct {
	Rows [][]Button
}

// Message is an outbound chat message.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard *Keyboard
	Markdown bool
}

// ChatAPI is the chat platform boundary. Implemented by the telegram
// adapter; mocked in tests.
type ChatAPI interface {
	Send(msg Message) error
	Edit(chatID int64, messageID int, text string, kb *Keyboard) error
	AnswerCallback(callbackID, text string) error
}

// CallbackRef identifies an inbound button press.
type CallbackRef struct {
	ID        string
	Data      string
	MessageID int
}

// Update is one inbound chat event, normalised by the adapter.
type Update struct {
	ChatID   int64
	UserID   int64
	UserName string
	Text     string
	Callback *CallbackRef
}

// Logger defines the logging interface used by the bot.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bot is the chat command surface: slash commands, inline keyboards,
// and the per-operator pending-action dialogs.
type Bot struct {
	api    ChatAPI
	engine *bridge.Bridge
	users  *auth.Users

	actions      *actionStore
	notifier     *Notifier
	pageSize     int
	dashboardURL string
	logger       Logger
}

// New creates the bot on top of the engine.
func New(api ChatAPI, engine *bridge.Bridge, dashboardURL string, pageSize int) *Bot {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Bot{
		api:          api,
		engine:       engine,
		users:        engine.Users(),
		actions:      newActionStore(),
		notifier:     NewNotifier(api, engine.Users()),
		pageSize:     pageSize,
		dashboardURL: dashboardURL,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger.
func (b *Bot) SetLogger(l Logger) {
	if l != nil {
		b.logger = l
		b.notifier.SetLogger(l)
	}
}

// Notifier exposes the fan-out used to wire the engine's chat
// notifications.
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}

// registry is shorthand for the engine's device registry.
func (b *Bot) registry() *device.Registry {
	return b.engine.Registry()
}

// HandleUpdate routes one inbound chat event. Errors are handled here
// by replying to the operator; nothing propagates to the adapter.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	switch {
	case u.Callback != nil:
		b.handleCallback(ctx, u)
	case strings.HasPrefix(u.Text, "/"):
		b.handleCommand(ctx, u)
	default:
		b.handleFreeText(ctx, u)
	}
}

// reply sends a plain text response to the update's chat, logging
// delivery failures.
func (b *Bot) reply(u Update, text string) {
	b.send(Message{ChatID: u.ChatID, Text: text})
}

// replyMarkdown sends a Markdown response with an optional keyboard.
func (b *Bot) replyMarkdown(u Update, text string, kb *Keyboard) {
	b.send(Message{ChatID: u.ChatID, Text: text, Keyboard: kb, Markdown: true})
}

func (b *Bot) send(msg Message) {
	if err := b.api.Send(msg); err != nil {
		b.logger.Warn("chat send failed", "chat", msg.ChatID, "error", err)
	}
}

// edit updates a previously sent message in place (pagination, list
// refreshes). Falls back to logging on failure.
func (b *Bot) edit(chatID int64, messageID int, text string, kb *Keyboard) {
	if err := b.api.Edit(chatID, messageID, text, kb); err != nil {
		b.logger.Warn("chat edit failed", "chat", chatID, "error", err)
	}
}
