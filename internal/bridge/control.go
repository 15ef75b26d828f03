package bridge

import (
	"context"

	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
)

// Operator-origin command paths. Each marks the relevant suppression
// window BEFORE publishing, so the device's confirming echo can never
// race the marker and leak through as a notification.

// SetSwitch applies an operator's relay command: record the intent,
// publish the command, and push the optimistic state to the dashboard.
func (b *Bridge) SetSwitch(ctx context.Context, deviceID string, relay int, on bool) error {
	if !device.ValidRelay(relay) {
		return device.ErrInvalidRelay
	}
	if _, err := b.registry.Get(deviceID); err != nil {
		return err
	}

	b.suppress.markUserControl(deviceID, relay)

	if _, err := b.registry.SetSwitch(ctx, deviceID, relay, on); err != nil {
		return err
	}

	topic := b.topics.SwitchCommand(deviceID, relay)
	if err := b.transport.PublishCommand(topic, mqtt.PayloadForBool(on)); err != nil {
		return err
	}

	b.dashboard.DeviceUpdate(deviceID, relay, on)
	b.telemetry.WriteRelayState(deviceID, relay, on)

	b.logger.Info("switch command sent", "device", deviceID, "relay", relay, "on", on)
	return nil
}

// ToggleSwitch flips a relay and returns the new state.
func (b *Bridge) ToggleSwitch(ctx context.Context, deviceID string, relay int) (bool, error) {
	if !device.ValidRelay(relay) {
		return false, device.ErrInvalidRelay
	}
	d, err := b.registry.Get(deviceID)
	if err != nil {
		return false, err
	}

	on := !d.Switches[relay-1]
	if err := b.SetSwitch(ctx, deviceID, relay, on); err != nil {
		return false, err
	}
	return on, nil
}

// SetAllSwitches sets every relay on one device to the same state.
func (b *Bridge) SetAllSwitches(ctx context.Context, deviceID string, on bool) error {
	if _, err := b.registry.Get(deviceID); err != nil {
		return err
	}

	for relay := 1; relay <= device.NumRelays; relay++ {
		b.suppress.markUserControl(deviceID, relay)
	}

	if err := b.registry.SetAll(ctx, deviceID, on); err != nil {
		return err
	}

	payload := mqtt.PayloadForBool(on)
	for relay := 1; relay <= device.NumRelays; relay++ {
		topic := b.topics.SwitchCommand(deviceID, relay)
		if err := b.transport.PublishCommand(topic, payload); err != nil {
			return err
		}
		b.telemetry.WriteRelayState(deviceID, relay, on)
	}

	b.dashboard.DevicesChanged()
	b.logger.Info("all switches command sent", "device", deviceID, "on", on)
	return nil
}

// SetAllDevices applies the same all-relays state to every registered
// device. A publish failure on one device does not stop the rest.
func (b *Bridge) SetAllDevices(ctx context.Context, on bool) {
	for _, d := range b.registry.List() {
		if err := b.SetAllSwitches(ctx, d.ID, on); err != nil {
			b.logger.Warn("bulk command failed for device",
				"device", d.ID, "on", on, "error", err)
		}
	}
}

// SetRemember commands a device to persist (or stop persisting) its
// switch states across restarts.
func (b *Bridge) SetRemember(ctx context.Context, deviceID string, on bool) error {
	if _, err := b.registry.Get(deviceID); err != nil {
		return err
	}

	if err := b.registry.SetRemember(ctx, deviceID, on); err != nil {
		return err
	}

	topic := b.topics.RememberCommand(deviceID)
	if err := b.transport.PublishCommand(topic, mqtt.PayloadForBool(on)); err != nil {
		return err
	}

	b.logger.Info("remember command sent", "device", deviceID, "on", on)
	return nil
}

// ToggleRemember flips the remember flag and returns the new state.
func (b *Bridge) ToggleRemember(ctx context.Context, deviceID string) (bool, error) {
	d, err := b.registry.Get(deviceID)
	if err != nil {
		return false, err
	}

	on := !d.Remember
	if err := b.SetRemember(ctx, deviceID, on); err != nil {
		return false, err
	}
	return on, nil
}
