// Package device implements the device registry for Relay Bridge.
//
// The registry owns the device and pending-device collections. It
// enforces the core invariants:
//   - device ids are unique
//   - every device has exactly 4 relay states
//   - the registry never exceeds its configured capacity (default 25)
//   - display names are 1-50 runes
//
// Every mutation persists the full collection synchronously before
// returning (write-through). Devices are created only by promoting a
// pending entry through the approval workflow and destroyed only by a
// confirmed remove.
package device
