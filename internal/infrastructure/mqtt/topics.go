package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for the relay device contract.
//
// Devices publish state under device/{id}/... and accept commands on
// device/{id}/command/...; the bridge's own liveness is announced on
// relaybridge/status via LWT.
const (
	// TopicPrefixDevice is the base for all device topics.
	TopicPrefixDevice = "device"

	// TopicBridgeStatus carries the bridge's own online/offline status.
	TopicBridgeStatus = "relaybridge/status"
)

// Topics provides builders for the relay device MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.SwitchCommand("sensor_01", 2)
//	// Returns: "device/sensor_01/command/switch2"
type Topics struct{}

// DeviceStatus returns the status topic for a device.
//
// Example: device/sensor_01/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// SwitchState returns the per-relay state echo topic.
//
// Example: device/sensor_01/switch2/state
func (Topics) SwitchState(deviceID string, relay int) string {
	return fmt.Sprintf("%s/%s/switch%d/state", TopicPrefixDevice, deviceID, relay)
}

// RememberState returns the remember-on-restart state echo topic.
//
// Example: device/sensor_01/remember/state
func (Topics) RememberState(deviceID string) string {
	return fmt.Sprintf("%s/%s/remember/state", TopicPrefixDevice, deviceID)
}

// DeviceIP returns the network address report topic.
//
// Example: device/sensor_01/ip
func (Topics) DeviceIP(deviceID string) string {
	return fmt.Sprintf("%s/%s/ip", TopicPrefixDevice, deviceID)
}

// SwitchCommand returns the per-relay command topic.
//
// Example: device/sensor_01/command/switch2
func (Topics) SwitchCommand(deviceID string, relay int) string {
	return fmt.Sprintf("%s/%s/command/switch%d", TopicPrefixDevice, deviceID, relay)
}

// RememberCommand returns the remember-on-restart command topic.
//
// Example: device/sensor_01/command/remember
func (Topics) RememberCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command/remember", TopicPrefixDevice, deviceID)
}

// SyncCommand returns the full state re-publish request topic.
//
// Example: device/sensor_01/command/sync
func (Topics) SyncCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command/sync", TopicPrefixDevice, deviceID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStatuses returns a pattern matching all device status announcements.
//
// Pattern: device/+/status
func (Topics) AllStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}

// AllSwitchStates returns a pattern matching state echoes for one relay
// number across all devices.
//
// Pattern: device/+/switch{relay}/state
func (Topics) AllSwitchStates(relay int) string {
	return fmt.Sprintf("%s/+/switch%d/state", TopicPrefixDevice, relay)
}

// AllRememberStates returns a pattern matching all remember-state echoes.
//
// Pattern: device/+/remember/state
func (Topics) AllRememberStates() string {
	return fmt.Sprintf("%s/+/remember/state", TopicPrefixDevice)
}

// AllIPs returns a pattern matching all device address reports.
//
// Pattern: device/+/ip
func (Topics) AllIPs() string {
	return fmt.Sprintf("%s/+/ip", TopicPrefixDevice)
}

// =============================================================================
// Inbound Topic Parsing
// =============================================================================

// StateEventKind identifies which device state topic an event arrived on.
type StateEventKind int

// StateEventKind values.
const (
	StateEventStatus StateEventKind = iota
	StateEventSwitch
	StateEventRemember
	StateEventIP
)

// StateEvent is an inbound device publication decoded from its topic.
//
// Decoding happens once at the transport boundary so that handlers
// dispatch on a tagged value instead of re-splitting topic strings.
type StateEvent struct {
	DeviceID string
	Kind     StateEventKind

	// Relay is the 1-based relay number; set only when Kind is StateEventSwitch.
	Relay int

	// Payload is the raw message payload as a string.
	Payload string
}

// ParseStateTopic decodes an inbound device topic and payload into a StateEvent.
//
// Recognised topics:
//
//	device/{id}/status
//	device/{id}/switch{1..4}/state
//	device/{id}/remember/state
//	device/{id}/ip
//
// Returns ErrNotDeviceTopic for anything else, including malformed relay
// numbers. The relay range is not validated here; the registry enforces 1-4.
func ParseStateTopic(topic string, payload []byte) (StateEvent, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != TopicPrefixDevice || parts[1] == "" {
		return StateEvent{}, fmt.Errorf("%w: %q", ErrNotDeviceTopic, topic)
	}

	ev := StateEvent{
		DeviceID: parts[1],
		Payload:  string(payload),
	}

	switch {
	case len(parts) == 3 && parts[2] == "status":
		ev.Kind = StateEventStatus
		return ev, nil

	case len(parts) == 3 && parts[2] == "ip":
		ev.Kind = StateEventIP
		return ev, nil

	case len(parts) == 4 && parts[2] == "remember" && parts[3] == "state":
		ev.Kind = StateEventRemember
		return ev, nil

	case len(parts) == 4 && strings.HasPrefix(parts[2], "switch") && parts[3] == "state":
		relay, err := strconv.Atoi(strings.TrimPrefix(parts[2], "switch"))
		if err != nil {
			return StateEvent{}, fmt.Errorf("%w: %q", ErrNotDeviceTopic, topic)
		}
		ev.Kind = StateEventSwitch
		ev.Relay = relay
		return ev, nil
	}

	return StateEvent{}, fmt.Errorf("%w: %q", ErrNotDeviceTopic, topic)
}

// BoolPayload converts a "1"/"0" device payload to a bool.
func BoolPayload(payload string) bool {
	return payload == "1"
}

// PayloadForBool converts a bool to the "1"/"0" device payload form.
func PayloadForBool(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
