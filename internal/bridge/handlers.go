package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
)

// handleMessage is the single inbound entry point for all device
// topics. The topic is decoded once into a tagged event and dispatched
// by kind; handlers never re-split topic strings.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	ev, err := mqtt.ParseStateTopic(topic, payload)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch ev.Kind {
	case mqtt.StateEventStatus:
		return b.handleStatus(ctx, ev)
	case mqtt.StateEventSwitch:
		return b.handleSwitchEcho(ctx, ev)
	case mqtt.StateEventRemember:
		return b.handleRememberEcho(ctx, ev)
	case mqtt.StateEventIP:
		return b.handleAddress(ctx, ev)
	}
	return nil
}

// handleStatus processes online announcements and last-will offline
// signals.
func (b *Bridge) handleStatus(ctx context.Context, ev mqtt.StateEvent) error {
	switch ev.Payload {
	case "online":
		return b.handleOnline(ctx, ev.DeviceID)
	case "offline":
		return b.handleOffline(ctx, ev.DeviceID)
	default:
		b.logger.Warn("unrecognised status payload", "device", ev.DeviceID, "payload", ev.Payload)
		return nil
	}
}

// handleOnline drives the per-device sync state machine.
//
// Unknown ids become pending devices and operators are told how to
// approve them; no registry mutation happens until approval. Known
// devices get a scheduled sync when they come back from offline or
// have never been synced this process lifetime. A duplicate online
// announcement from an already-synced, already-online device is a
// no-op.
func (b *Bridge) handleOnline(ctx context.Context, deviceID string) error {
	wasOffline, err := b.registry.SetOnline(ctx, deviceID)
	if errors.Is(err, device.ErrNotFound) {
		return b.handleDiscovery(ctx, deviceID)
	}
	if err != nil {
		return err
	}

	if wasOffline || !b.sync.hasSynced(deviceID) {
		b.scheduleSync(deviceID)
	}

	if wasOffline {
		d, err := b.registry.Get(deviceID)
		if err == nil {
			b.notifier.NotifyAll(fmt.Sprintf("🟢 %s is online", d.Name))
		}
		b.dashboard.DevicesChanged()
		b.telemetry.WriteOnlineState(deviceID, true)
	}
	return nil
}

// handleDiscovery queues an unknown device for approval and announces
// it to every operator.
func (b *Bridge) handleDiscovery(ctx context.Context, deviceID string) error {
	created, err := b.registry.AddPending(ctx, deviceID)
	if err != nil {
		return err
	}
	if !created {
		// Still pending from an earlier announcement.
		return nil
	}

	b.notifier.NotifyAll(fmt.Sprintf(
		"🆕 New device discovered: %s\nUse /pending to review and approve it.",
		device.DefaultName(deviceID),
	))
	return nil
}

// handleOffline processes a last-will disconnect notice. No sync is
// triggered; the device will announce online again when it returns.
func (b *Bridge) handleOffline(ctx context.Context, deviceID string) error {
	d, err := b.registry.Get(deviceID)
	if errors.Is(err, device.ErrNotFound) {
		// Unapproved device dropping off; nothing to track.
		return nil
	}
	if err != nil {
		return err
	}

	if err := b.registry.MarkOffline(ctx, deviceID); err != nil {
		return err
	}

	if d.Online {
		b.notifier.NotifyAll(fmt.Sprintf("📴 %s went offline", d.Name))
		b.dashboard.DevicesChanged()
		b.telemetry.WriteOnlineState(deviceID, false)
	}
	return nil
}

// handleSwitchEcho processes a per-relay state echo.
//
// The registry and the dashboard always see the echo; only the chat
// notification is subject to suppression. An echo inside a sync or
// user-control window is state we already know about.
func (b *Bridge) handleSwitchEcho(ctx context.Context, ev mqtt.StateEvent) error {
	on := mqtt.BoolPayload(ev.Payload)

	changed, err := b.registry.SetSwitch(ctx, ev.DeviceID, ev.Relay, on)
	if errors.Is(err, device.ErrNotFound) {
		b.logger.Debug("switch echo from unknown device", "device", ev.DeviceID)
		return nil
	}
	if err != nil {
		return err
	}

	// The dashboard mirrors every echo, even ones confirming state we
	// already hold.
	b.dashboard.DeviceUpdate(ev.DeviceID, ev.Relay, on)

	if !changed {
		return nil
	}

	b.telemetry.WriteRelayState(ev.DeviceID, ev.Relay, on)

	if b.suppress.shouldSuppress(ev.DeviceID, ev.Relay) {
		b.logger.Debug("notification suppressed",
			"device", ev.DeviceID, "relay", ev.Relay, "on", on)
		return nil
	}

	d, err := b.registry.Get(ev.DeviceID)
	if err != nil {
		return err
	}
	state := "OFF"
	if on {
		state = "ON"
	}
	b.notifier.NotifyAll(fmt.Sprintf("🔌 %s: switch %d turned %s", d.Name, ev.Relay, state))
	return nil
}

// handleRememberEcho records the remember-on-restart flag.
func (b *Bridge) handleRememberEcho(ctx context.Context, ev mqtt.StateEvent) error {
	err := b.registry.SetRemember(ctx, ev.DeviceID, mqtt.BoolPayload(ev.Payload))
	if errors.Is(err, device.ErrNotFound) {
		return nil
	}
	return err
}

// handleAddress records the device's reported network address, used
// for per-device web links.
func (b *Bridge) handleAddress(ctx context.Context, ev mqtt.StateEvent) error {
	err := b.registry.SetAddress(ctx, ev.DeviceID, ev.Payload)
	if errors.Is(err, device.ErrNotFound) {
		return nil
	}
	return err
}
