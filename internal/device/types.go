package device

import (
	"strings"
	"time"
	"unicode/utf8"
)

// NumRelays is the fixed number of switch outputs per device.
const NumRelays = 4

// MaxNameLength is the maximum display name length in runes.
const MaxNameLength = 50

// Device represents one multi-relay unit known to the bridge.
//
// Devices are value types: every field copies cleanly, so registry
// reads hand out plain copies and callers can never mutate shared state.
type Device struct {
	// ID is the stable identity the device assigns itself,
	// typically derived from its hardware id (e.g. "sensor_01").
	ID string `json:"id"`

	// Name is the operator-editable display name, 1-50 runes.
	Name string `json:"name"`

	// Online reflects the last known connectivity state.
	Online bool `json:"online"`

	// LastSeen is the time of the last status announcement.
	LastSeen time.Time `json:"lastSeen"`

	// Switches holds the 4 relay states. Index 0 is relay 1.
	Switches [NumRelays]bool `json:"switches"`

	// Remember indicates the device restores switch states after restart.
	Remember bool `json:"rememberState"`

	// IP is the last reported network address, empty if never reported.
	IP string `json:"ip,omitempty"`
}

// PendingDevice is a discovered-but-unapproved device awaiting an
// operator decision. It never expires on its own.
type PendingDevice struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"firstSeen"`
}

// DefaultName derives a human-friendly display name from a device id
// by replacing underscores with spaces ("sensor_01" → "sensor 01").
func DefaultName(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// ValidateName checks a display name against the 1-50 rune limit.
// Leading and trailing whitespace is not counted.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}

// ValidRelay reports whether relay is within the 1-4 range.
func ValidRelay(relay int) bool {
	return relay >= 1 && relay <= NumRelays
}
