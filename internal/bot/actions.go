package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// actionKind tags the multi-turn dialog an operator is in the middle
// of.
type actionKind int

const (
	actionRemove actionKind = iota
	actionRename
	actionApprove
)

// pendingAction is one operator's live dialog slot.
type pendingAction struct {
	kind        actionKind
	deviceID    string
	oldName     string
	defaultName string
}

// actionStore holds at most one live dialog per operator. Starting a
// new dialog replaces any existing one; dialogs never stack. State is
// in-memory only and lost on restart.
type actionStore struct {
	mu    sync.Mutex
	slots map[int64]pendingAction
}

func newActionStore() *actionStore {
	return &actionStore{slots: make(map[int64]pendingAction)}
}

// set installs a dialog slot, replacing any existing one.
func (s *actionStore) set(userID int64, a pendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[userID] = a
}

func (s *actionStore) get(userID int64) (pendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.slots[userID]
	return a, ok
}

func (s *actionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, userID)
}

// =============================================================================
// Dialog triggers
// =============================================================================

func (b *Bot) beginRemove(u Update, d device.Device) {
	b.actions.set(u.UserID, pendingAction{kind: actionRemove, deviceID: d.ID})
	b.reply(u, fmt.Sprintf(
		"⚠️ Remove %s? This cannot be undone.\nSend /confirm to remove it or /cancel to keep it.",
		d.Name))
}

func (b *Bot) beginRename(u Update, d device.Device) {
	b.actions.set(u.UserID, pendingAction{
		kind:     actionRename,
		deviceID: d.ID,
		oldName:  d.Name,
	})
	b.reply(u, fmt.Sprintf(
		"✏️ Renaming %s. Send the new name (1-50 characters), or /cancel.", d.Name))
}

func (b *Bot) beginApprove(u Update, p device.PendingDevice) {
	b.actions.set(u.UserID, pendingAction{
		kind:        actionApprove,
		deviceID:    p.ID,
		defaultName: p.Name,
	})
	b.reply(u, fmt.Sprintf(
		"🆕 Approving %s.\nSend a name for it (1-50 characters), /skip to use \"%s\", or /cancel.",
		p.ID, p.Name))
}

// =============================================================================
// Dialog advancement
// =============================================================================

// handleFreeText advances the sender's dialog slot with a plain text
// message. Free text from an operator with no slot is ignored; people
// send unrelated messages all the time.
func (b *Bot) handleFreeText(ctx context.Context, u Update) {
	if !b.users.IsAuthorized(u.UserID) {
		return
	}

	a, ok := b.actions.get(u.UserID)
	if !ok {
		return
	}

	switch a.kind {
	case actionRemove:
		b.reply(u, "Send /confirm to remove the device, or /cancel.")

	case actionRename:
		b.finishRename(ctx, u, a, u.Text)

	case actionApprove:
		b.finishApprove(ctx, u, a, u.Text)
	}
}

// handleConfirm completes a remove dialog.
func (b *Bot) handleConfirm(ctx context.Context, u Update) {
	a, ok := b.actions.get(u.UserID)
	if !ok {
		b.reply(u, "No pending action to confirm.")
		return
	}
	if a.kind != actionRemove {
		b.reply(u, "Nothing to confirm. Send the name, or /cancel.")
		return
	}

	b.actions.clear(u.UserID)

	d, err := b.registry().Remove(ctx, a.deviceID)
	if errors.Is(err, device.ErrNotFound) {
		b.reply(u, "That device is already gone.")
		return
	}
	if err != nil {
		b.logger.Error("device removal failed", "device", a.deviceID, "error", err)
		b.reply(u, "❌ Could not remove the device. Try again.")
		return
	}

	b.engine.BroadcastDevices()
	b.reply(u, fmt.Sprintf("🗑 %s removed.", d.Name))
}

// handleCancel abandons whatever dialog the operator is in.
func (b *Bot) handleCancel(u Update) {
	if _, ok := b.actions.get(u.UserID); !ok {
		b.reply(u, "No pending action to cancel.")
		return
	}
	b.actions.clear(u.UserID)
	b.reply(u, "Action cancelled.")
}

// handleSkip completes an approve dialog with the device's default
// name.
func (b *Bot) handleSkip(ctx context.Context, u Update) {
	a, ok := b.actions.get(u.UserID)
	if !ok || a.kind != actionApprove {
		b.reply(u, "Nothing to skip.")
		return
	}
	b.finishApprove(ctx, u, a, a.defaultName)
}

// finishRename applies the new name. An invalid name re-prompts and
// keeps the slot so the operator can just try again.
func (b *Bot) finishRename(ctx context.Context, u Update, a pendingAction, name string) {
	err := b.registry().Rename(ctx, a.deviceID, name)
	switch {
	case errors.Is(err, device.ErrInvalidName):
		b.reply(u, "❌ Names must be 1-50 characters. Try again, or /cancel.")
		return

	case errors.Is(err, device.ErrNotFound):
		b.actions.clear(u.UserID)
		b.reply(u, "That device no longer exists.")
		return

	case err != nil:
		b.actions.clear(u.UserID)
		b.logger.Error("device rename failed", "device", a.deviceID, "error", err)
		b.reply(u, "❌ Could not rename the device. Try again.")
		return
	}

	b.actions.clear(u.UserID)
	b.engine.BroadcastDevices()
	d, _ := b.registry().Get(a.deviceID)
	b.reply(u, fmt.Sprintf("✅ Renamed \"%s\" to \"%s\".", a.oldName, d.Name))
}

// finishApprove promotes the pending device under the given name.
//
// An invalid name keeps the slot for a retry. Hitting the device limit
// aborts the dialog but leaves the entry pending, so the operator can
// free a slot and approve again later.
func (b *Bot) finishApprove(ctx context.Context, u Update, a pendingAction, name string) {
	d, err := b.registry().Promote(ctx, a.deviceID, name)
	switch {
	case errors.Is(err, device.ErrInvalidName):
		b.reply(u, "❌ Names must be 1-50 characters. Try again, or /cancel.")
		return

	case errors.Is(err, device.ErrCapacityExceeded):
		b.actions.clear(u.UserID)
		b.reply(u, fmt.Sprintf(
			"❌ Device limit reached (%d). Remove a device first; %s stays pending.",
			b.registry().MaxDevices(), a.deviceID))
		return

	case errors.Is(err, device.ErrNotFound):
		b.actions.clear(u.UserID)
		b.reply(u, "That device is no longer pending.")
		return

	case err != nil:
		b.actions.clear(u.UserID)
		b.logger.Error("device approval failed", "device", a.deviceID, "error", err)
		b.reply(u, "❌ Could not approve the device. Try again.")
		return
	}

	b.actions.clear(u.UserID)
	b.engine.BroadcastDevices()
	b.reply(u, fmt.Sprintf("✅ %s approved as \"%s\".", d.ID, d.Name))
}
