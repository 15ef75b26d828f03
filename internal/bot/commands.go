package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/device"
)

// handleCommand dispatches a slash command.
//
// Non-operators can only /register (plus /start and /help, which point
// them at registration). Everything else is behind the membership gate.
func (b *Bot) handleCommand(ctx context.Context, u Update) {
	cmd, args := splitCommand(u.Text)

	if !b.users.IsAuthorized(u.UserID) {
		switch cmd {
		case "/register":
			b.handleRegister(ctx, u, args)
		case "/start", "/help":
			b.reply(u, registerHelp)
		default:
			b.reply(u, registerHelp)
		}
		return
	}

	switch cmd {
	case "/start", "/help":
		b.replyMarkdown(u, helpText, nil)

	case "/control":
		b.sendControlList(u, 0)

	case "/status":
		b.replyMarkdown(u, b.renderStatus(), nil)

	case "/devices":
		devices := b.registry().List()
		b.replyMarkdown(u, b.renderDeviceList(len(devices)), deviceManageKeyboard(devices))

	case "/pending":
		pending := b.registry().PendingList()
		b.replyMarkdown(u, b.renderPendingDevices(pending), pendingKeyboard(pending))

	case "/users":
		b.replyMarkdown(u, b.renderUsers(), nil)

	case "/webui":
		b.replyMarkdown(u, b.renderWebUI(), webuiKeyboard(b.registry().List()))

	case "/register":
		b.handleRegister(ctx, u, args)

	case "/approveuser":
		b.handleApproveUser(ctx, u, args)

	case "/remember":
		b.handleRemember(ctx, u, args)

	case "/confirm":
		b.handleConfirm(ctx, u)

	case "/cancel":
		b.handleCancel(u)

	case "/skip":
		b.handleSkip(ctx, u)

	default:
		b.reply(u, "Unknown command. Send /help for the list.")
	}
}

// splitCommand separates "/cmd@botname args" into the bare command and
// its argument string.
func splitCommand(text string) (string, string) {
	cmd := text
	args := ""
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmd = text[:i]
		args = strings.TrimSpace(text[i+1:])
	}
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, args
}

// sendControlList sends (or edits, when messageID > 0) the paginated
// device picker.
func (b *Bot) sendControlList(u Update, page int) {
	devices, totalPages := b.registry().ListPage(page, b.pageSize)
	if len(devices) == 0 && page == 0 {
		b.reply(u, "No devices registered yet. Approve one with /pending first.")
		return
	}
	if page >= totalPages {
		page = totalPages - 1
	}

	text := b.renderControlList(totalPages, page)
	kb := controlListKeyboard(devices, page, totalPages)

	if u.Callback != nil && u.Callback.MessageID > 0 {
		b.edit(u.ChatID, u.Callback.MessageID, text, kb)
		return
	}
	b.replyMarkdown(u, text, kb)
}

// handleRegister processes "/register <password>".
//
// A wrong password gets the same reply whether or not the sender is
// already pending, so the command leaks nothing about queue state.
func (b *Bot) handleRegister(ctx context.Context, u Update, password string) {
	if password == "" {
		b.reply(u, "Usage: /register <password>")
		return
	}

	outcome, err := b.users.Register(ctx, u.UserID, u.UserName, password)
	if errors.Is(err, auth.ErrWrongPassword) {
		b.reply(u, "❌ Wrong password.")
		return
	}
	if err != nil {
		b.logger.Error("registration failed", "user", u.UserID, "error", err)
		b.reply(u, "❌ Registration failed. Try again later.")
		return
	}

	switch outcome {
	case auth.Registered:
		b.reply(u, "✅ Registration received. An operator will approve you shortly.")
		b.notifier.NotifyAll(fmt.Sprintf(
			"👤 New registration request from %s (id %d).\nApprove with /approveuser %d <password>.",
			displayName(u), u.UserID, u.UserID))
	case auth.AlreadyPending:
		b.reply(u, "⏳ Your registration is already waiting for approval.")
	case auth.AlreadyAuthorized:
		b.reply(u, "You are already registered. Send /help to get started.")
	}
}

// handleApproveUser processes "/approveuser <userId> <password>".
//
// The first argument is the requester's chat id, as shown by /users
// and in the registration broadcast. The 1-based list position works
// too as a shorthand; ids and positions never collide because chat
// ids are far larger than the pending queue.
func (b *Bot) handleApproveUser(ctx context.Context, u Update, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(u, "Usage: /approveuser <userId> <password>")
		return
	}

	arg, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || arg < 1 {
		b.reply(u, "Usage: /approveuser <userId> <password>")
		return
	}

	p, err := b.users.GetPending(arg)
	if errors.Is(err, auth.ErrNotFound) {
		p, err = b.users.PendingByIndex(int(arg) - 1)
	}
	if errors.Is(err, auth.ErrNotFound) {
		b.reply(u, "No pending registration with that id. Check /users.")
		return
	}

	approved, err := b.users.Approve(ctx, p.ID, fields[1])
	switch {
	case errors.Is(err, auth.ErrWrongPassword):
		b.reply(u, "❌ Wrong password.")
		return
	case errors.Is(err, auth.ErrNotFound):
		b.reply(u, "That registration was already handled.")
		return
	case err != nil:
		b.logger.Error("user approval failed", "user", p.ID, "error", err)
		b.reply(u, "❌ Approval failed. Try again.")
		return
	}

	b.reply(u, fmt.Sprintf("✅ %s is now an operator.", approved.Name))
	b.notifier.Send(approved.ID, "✅ You have been approved. Send /help to get started.")
}

// handleRemember processes "/remember <deviceId>".
func (b *Bot) handleRemember(ctx context.Context, u Update, deviceID string) {
	if deviceID == "" {
		b.reply(u, "Usage: /remember <deviceId>")
		return
	}

	on, err := b.engine.ToggleRemember(ctx, deviceID)
	if errors.Is(err, device.ErrNotFound) {
		b.reply(u, "Unknown device. Check /devices for the id list.")
		return
	}
	if err != nil {
		b.logger.Error("remember toggle failed", "device", deviceID, "error", err)
		b.reply(u, "❌ Could not reach the device. Try again.")
		return
	}

	d, _ := b.registry().Get(deviceID)
	b.reply(u, fmt.Sprintf("💾 %s will %s its switch states across restarts.",
		d.Name, map[bool]string{true: "now remember", false: "no longer remember"}[on]))
}

// displayName prefers the platform user name, falling back to the id.
func displayName(u Update) string {
	if u.UserName != "" {
		return u.UserName
	}
	return fmt.Sprintf("user %d", u.UserID)
}
