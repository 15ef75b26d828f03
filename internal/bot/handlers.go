package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// handleCallback answers an inline-keyboard press. Every path calls
// AnswerCallback so the client's spinner always stops.
func (b *Bot) handleCallback(ctx context.Context, u Update) {
	ref := u.Callback

	if !b.users.IsAuthorized(u.UserID) {
		b.answer(ref, "Not authorized.")
		return
	}

	cb, err := ParseCallback(ref.Data)
	if err != nil {
		b.logger.Warn("bad callback token", "data", ref.Data, "user", u.UserID)
		b.answer(ref, "That button has expired.")
		return
	}

	switch cb.Kind {
	case CallbackOpenDevice:
		b.openControlView(ctx, u, cb.DeviceID)

	case CallbackToggleSwitch:
		b.toggleFromKeyboard(ctx, u, cb)

	case CallbackDeviceAll:
		b.deviceAllFromKeyboard(ctx, u, cb)

	case CallbackGlobalAll:
		b.engine.SetAllDevices(ctx, cb.On)
		b.answer(ref, fmt.Sprintf("All devices switched %s.", onOff(cb.On)))
		b.sendControlList(u, 0)

	case CallbackPage:
		b.answer(ref, "")
		b.sendControlList(u, cb.Page)

	case CallbackBack:
		b.answer(ref, "")
		b.sendControlList(u, 0)

	case CallbackRename:
		d, err := b.registry().Get(cb.DeviceID)
		if err != nil {
			b.answer(ref, "Unknown device.")
			return
		}
		b.answer(ref, "")
		b.beginRename(u, d)

	case CallbackRemove:
		d, err := b.registry().Get(cb.DeviceID)
		if err != nil {
			b.answer(ref, "Unknown device.")
			return
		}
		b.answer(ref, "")
		b.beginRemove(u, d)

	case CallbackRemember:
		b.rememberFromKeyboard(ctx, u, cb.DeviceID)

	case CallbackApprove:
		p, err := b.registry().GetPending(cb.DeviceID)
		if err != nil {
			b.answer(ref, "Already handled.")
			return
		}
		b.answer(ref, "")
		b.beginApprove(u, p)

	case CallbackWebLink:
		b.answer(ref, "")
		b.reply(u, "That device has not reported its address yet. It will show up here shortly after it reconnects.")
	}
}

func (b *Bot) answer(ref *CallbackRef, text string) {
	if err := b.api.AnswerCallback(ref.ID, text); err != nil {
		b.logger.Warn("callback answer failed", "error", err)
	}
}

// openControlView shows the switch grid for one device.
//
// It first requests a sync and waits out the refresh window, so the
// grid reflects what the hardware reports right now rather than the
// last cached echo. An offline device cannot act on commands, so the
// view stays closed until it returns.
func (b *Bot) openControlView(ctx context.Context, u Update, deviceID string) {
	d, err := b.registry().Get(deviceID)
	if err != nil {
		b.answer(u.Callback, "Unknown device.")
		return
	}
	if !d.Online {
		b.answer(u.Callback, fmt.Sprintf("%s is offline and cannot be controlled.", d.Name))
		return
	}

	if err := b.engine.RequestSync(ctx, deviceID); err != nil {
		b.logger.Warn("control view sync failed", "device", deviceID, "error", err)
	} else {
		b.engine.RefreshWait(ctx)
		if fresh, err := b.registry().Get(deviceID); err == nil {
			d = fresh
		}
	}

	b.answer(u.Callback, "")
	b.edit(u.ChatID, u.Callback.MessageID, renderControlView(d), controlKeyboard(d))
}

// toggleFromKeyboard flips one relay and refreshes the grid in place.
func (b *Bot) toggleFromKeyboard(ctx context.Context, u Update, cb Callback) {
	on, err := b.engine.ToggleSwitch(ctx, cb.DeviceID, cb.Relay)
	switch {
	case errors.Is(err, device.ErrNotFound):
		b.answer(u.Callback, "Unknown device.")
		return
	case errors.Is(err, device.ErrInvalidRelay):
		b.answer(u.Callback, "That button has expired.")
		return
	case err != nil:
		b.logger.Error("switch toggle failed",
			"device", cb.DeviceID, "relay", cb.Relay, "error", err)
		b.answer(u.Callback, "Command failed. Try again.")
		return
	}

	b.answer(u.Callback, fmt.Sprintf("Switch %d %s.", cb.Relay, onOff(on)))
	b.refreshControlView(u, cb.DeviceID)
}

// deviceAllFromKeyboard applies ON/OFF to all four relays of one
// device.
func (b *Bot) deviceAllFromKeyboard(ctx context.Context, u Update, cb Callback) {
	if err := b.engine.SetAllSwitches(ctx, cb.DeviceID, cb.On); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			b.answer(u.Callback, "Unknown device.")
			return
		}
		b.logger.Error("all-switches command failed",
			"device", cb.DeviceID, "on", cb.On, "error", err)
		b.answer(u.Callback, "Command failed. Try again.")
		return
	}

	b.answer(u.Callback, fmt.Sprintf("All switches %s.", onOff(cb.On)))
	b.refreshControlView(u, cb.DeviceID)
}

// rememberFromKeyboard toggles restart-state memory and re-renders the
// management list so the 💾 label reflects the new value.
func (b *Bot) rememberFromKeyboard(ctx context.Context, u Update, deviceID string) {
	on, err := b.engine.ToggleRemember(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			b.answer(u.Callback, "Unknown device.")
			return
		}
		b.logger.Error("remember toggle failed", "device", deviceID, "error", err)
		b.answer(u.Callback, "Command failed. Try again.")
		return
	}

	b.answer(u.Callback, fmt.Sprintf("Remember state %s.", onOff(on)))

	devices := b.registry().List()
	b.edit(u.ChatID, u.Callback.MessageID,
		b.renderDeviceList(len(devices)), deviceManageKeyboard(devices))
}

// refreshControlView re-renders the switch grid after a command.
func (b *Bot) refreshControlView(u Update, deviceID string) {
	d, err := b.registry().Get(deviceID)
	if err != nil {
		return
	}
	b.edit(u.ChatID, u.Callback.MessageID, renderControlView(d), controlKeyboard(d))
}
