package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nerrad567/relay-bridge/internal/bot"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
)

const defaultPollTimeout = 30

// Adapter implements bot.ChatAPI over the Telegram Bot API and pumps
// long-polled updates into the bot.
type Adapter struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      bot.Logger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New authenticates against the Telegram API.
func New(cfg config.TelegramConfig) (*Adapter, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("authenticating telegram bot: %w", err)
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout < 1 {
		pollTimeout = defaultPollTimeout
	}

	return &Adapter{
		api:         api,
		pollTimeout: pollTimeout,
		logger:      noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (a *Adapter) SetLogger(l bot.Logger) {
	if l != nil {
		a.logger = l
	}
}

// Username returns the bot account name, for startup logging.
func (a *Adapter) Username() string {
	return a.api.Self.UserName
}

// Run registers the command menu and pumps updates into the handler
// until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, b *bot.Bot) error {
	if err := a.registerCommands(); err != nil {
		a.logger.Warn("command menu registration failed", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.pollTimeout
	updates := a.api.GetUpdatesChan(u)

	a.logger.Info("telegram update pump started", "bot", a.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if converted, ok := convert(upd); ok {
				b.HandleUpdate(ctx, converted)
			}
		}
	}
}

// registerCommands publishes the slash-command menu shown by the
// client.
func (a *Adapter) registerCommands() error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "control", Description: "Pick a device and toggle its switches"},
		tgbotapi.BotCommand{Command: "status", Description: "Overview of every device"},
		tgbotapi.BotCommand{Command: "devices", Description: "Rename, remove, or configure devices"},
		tgbotapi.BotCommand{Command: "pending", Description: "Approve newly discovered devices"},
		tgbotapi.BotCommand{Command: "users", Description: "Operators and pending registrations"},
		tgbotapi.BotCommand{Command: "webui", Description: "Dashboard and device web links"},
		tgbotapi.BotCommand{Command: "help", Description: "Command reference"},
	)
	_, err := a.api.Request(commands)
	return err
}

// convert normalises a Telegram update. Updates carrying neither a
// text message nor a callback are dropped.
func convert(upd tgbotapi.Update) (bot.Update, bool) {
	if cb := upd.CallbackQuery; cb != nil && cb.Message != nil {
		return bot.Update{
			ChatID:   cb.Message.Chat.ID,
			UserID:   cb.From.ID,
			UserName: userName(cb.From),
			Callback: &bot.CallbackRef{
				ID:        cb.ID,
				Data:      cb.Data,
				MessageID: cb.Message.MessageID,
			},
		}, true
	}

	if msg := upd.Message; msg != nil && msg.Text != "" && msg.From != nil {
		return bot.Update{
			ChatID:   msg.Chat.ID,
			UserID:   msg.From.ID,
			UserName: userName(msg.From),
			Text:     msg.Text,
		}, true
	}

	return bot.Update{}, false
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

// =============================================================================
// bot.ChatAPI
// =============================================================================

// Send delivers one outbound message.
func (a *Adapter) Send(msg bot.Message) error {
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.Markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	if msg.Keyboard != nil {
		out.ReplyMarkup = toMarkup(msg.Keyboard)
	}

	_, err := a.api.Send(out)
	return err
}

// Edit replaces a previously sent message's text and keyboard.
func (a *Adapter) Edit(chatID int64, messageID int, text string, kb *bot.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		markup := toMarkup(kb)
		edit.ReplyMarkup = &markup
	}

	_, err := a.api.Send(edit)
	return err
}

// AnswerCallback stops the client's button spinner, optionally with a
// toast.
func (a *Adapter) AnswerCallback(callbackID, text string) error {
	_, err := a.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func toMarkup(kb *bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
