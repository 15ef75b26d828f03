package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshots defines the persistence interface used by the Registry.
// Collections are saved whole and loaded whole; Load returns false
// when no snapshot exists yet.
type Snapshots interface {
	Save(ctx context.Context, name string, v any) error
	Load(ctx context.Context, name string, v any) (bool, error)
}

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshot names within the persistence store.
const (
	snapshotDevices        = "devices"
	snapshotPendingDevices = "pending_devices"
)

// Limits holds the registry size configuration.
type Limits struct {
	// MaxDevices is the hard registry capacity (default 25).
	MaxDevices int

	// WarningThreshold is the count at which capacity warnings begin
	// (default 20).
	WarningThreshold int
}

// Registry owns the device and pending-device collections.
//
// It enforces uniqueness, capacity, and relay/name validation, and is
// the single writer of both persisted snapshots. Every mutating call
// persists the full collection synchronously before returning; the
// collections are bounded so the write cost is too.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	pending map[string]PendingDevice

	snapshots Snapshots
	limits    Limits
	logger    Logger
	now       func() time.Time
}

// NewRegistry creates a device registry with the given persistence
// store and limits.
func NewRegistry(snapshots Snapshots, limits Limits) *Registry {
	return &Registry{
		devices:   make(map[string]Device),
		pending:   make(map[string]PendingDevice),
		snapshots: snapshots,
		limits:    limits,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load restores both collections from the persistence store.
// This should be called once on application startup.
func (r *Registry) Load(ctx context.Context) error {
	var devices []Device
	if _, err := r.snapshots.Load(ctx, snapshotDevices, &devices); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	var pending []PendingDevice
	if _, err := r.snapshots.Load(ctx, snapshotPendingDevices, &pending); err != nil {
		return fmt.Errorf("loading pending devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]Device, len(devices))
	for _, d := range devices {
		// Connectivity is not trusted across restarts; devices prove
		// themselves online by announcing status after we reconnect.
		d.Online = false
		r.devices[d.ID] = d
	}

	r.pending = make(map[string]PendingDevice, len(pending))
	for _, p := range pending {
		r.pending[p.ID] = p
	}

	r.logger.Info("device registry loaded",
		"devices", len(r.devices),
		"pending", len(r.pending),
	)
	return nil
}

// persistDevices writes the device collection. Caller must hold mu.
func (r *Registry) persistDevices(ctx context.Context) error {
	devices := r.sortedDevicesLocked()
	if err := r.snapshots.Save(ctx, snapshotDevices, devices); err != nil {
		return fmt.Errorf("persisting devices: %w", err)
	}
	return nil
}

// persistPending writes the pending collection. Caller must hold mu.
func (r *Registry) persistPending(ctx context.Context) error {
	pending := r.sortedPendingLocked()
	if err := r.snapshots.Save(ctx, snapshotPendingDevices, pending); err != nil {
		return fmt.Errorf("persisting pending devices: %w", err)
	}
	return nil
}

// sortedDevicesLocked returns devices sorted by id. Caller must hold mu.
func (r *Registry) sortedDevicesLocked() []Device {
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// sortedPendingLocked returns pending devices in discovery order.
// Caller must hold mu.
func (r *Registry) sortedPendingLocked() []PendingDevice {
	pending := make([]PendingDevice, 0, len(r.pending))
	for _, p := range r.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].FirstSeen.Equal(pending[j].FirstSeen) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].FirstSeen.Before(pending[j].FirstSeen)
	})
	return pending
}

// =============================================================================
// Reads
// =============================================================================

// Get retrieves a device by id.
// Returns ErrNotFound if the device does not exist.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// List returns all devices sorted by id.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedDevicesLocked()
}

// ListPage returns one page of devices and the total page count.
// Pages are zero-based; an out-of-range page is clamped.
func (r *Registry) ListPage(page, pageSize int) ([]Device, int) {
	r.mu.RLock()
	devices := r.sortedDevicesLocked()
	r.mu.RUnlock()

	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := (len(devices) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}

	start := page * pageSize
	end := start + pageSize
	if start > len(devices) {
		start = len(devices)
	}
	if end > len(devices) {
		end = len(devices)
	}
	return devices[start:end], totalPages
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// AtCapacity reports whether the registry has reached its maximum.
func (r *Registry) AtCapacity() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices) >= r.limits.MaxDevices
}

// AtWarning reports whether the registry has reached the warning
// threshold. Presentation layers use this to show capacity banners.
func (r *Registry) AtWarning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices) >= r.limits.WarningThreshold
}

// MaxDevices returns the configured capacity limit.
func (r *Registry) MaxDevices() int {
	return r.limits.MaxDevices
}

// =============================================================================
// Mutations
// =============================================================================

// AddApproved registers a new device with the given display name.
//
// The device starts offline with all switches off and remember
// disabled; it proves connectivity by announcing status.
// Fails with ErrCapacityExceeded when full, ErrAlreadyExists for a
// duplicate id, ErrInvalidName for a bad name.
func (r *Registry) AddApproved(ctx context.Context, id, name string) (Device, error) {
	if err := ValidateName(name); err != nil {
		return Device{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) >= r.limits.MaxDevices {
		return Device{}, ErrCapacityExceeded
	}
	if _, ok := r.devices[id]; ok {
		return Device{}, ErrAlreadyExists
	}

	d := Device{
		ID:       id,
		Name:     strings.TrimSpace(name),
		LastSeen: r.now().UTC(),
	}
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		delete(r.devices, id)
		return Device{}, err
	}

	r.logger.Info("device added", "id", id, "name", d.Name, "count", len(r.devices))
	return d, nil
}

// Remove deletes a device and returns its last state.
// Returns ErrNotFound if the device does not exist.
func (r *Registry) Remove(ctx context.Context, id string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	delete(r.devices, id)

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = d
		return Device{}, err
	}

	r.logger.Info("device removed", "id", id, "name", d.Name, "count", len(r.devices))
	return d, nil
}

// Rename changes a device's display name.
// Returns ErrNotFound or ErrInvalidName; persists on success.
func (r *Registry) Rename(ctx context.Context, id, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}

	old := d
	d.Name = strings.TrimSpace(name)
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return err
	}

	r.logger.Info("device renamed", "id", id, "name", d.Name)
	return nil
}

// SetSwitch records a relay state and reports whether it changed.
// Used both for device echoes and operator commands.
func (r *Registry) SetSwitch(ctx context.Context, id string, relay int, on bool) (bool, error) {
	if !ValidRelay(relay) {
		return false, ErrInvalidRelay
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false, ErrNotFound
	}

	if d.Switches[relay-1] == on {
		return false, nil
	}

	old := d
	d.Switches[relay-1] = on
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return false, err
	}

	r.logger.Debug("switch state recorded", "id", id, "relay", relay, "on", on)
	return true, nil
}

// ToggleSwitch flips a relay and returns the new state.
func (r *Registry) ToggleSwitch(ctx context.Context, id string, relay int) (bool, error) {
	if !ValidRelay(relay) {
		return false, ErrInvalidRelay
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false, ErrNotFound
	}

	old := d
	d.Switches[relay-1] = !d.Switches[relay-1]
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return false, err
	}

	newState := d.Switches[relay-1]
	r.logger.Debug("switch toggled", "id", id, "relay", relay, "on", newState)
	return newState, nil
}

// SetAll sets every relay on a device to the same state.
func (r *Registry) SetAll(ctx context.Context, id string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}

	old := d
	for i := range d.Switches {
		d.Switches[i] = on
	}
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return err
	}

	r.logger.Debug("all switches set", "id", id, "on", on)
	return nil
}

// SetRemember records the remember-on-restart flag.
func (r *Registry) SetRemember(ctx context.Context, id string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}

	old := d
	d.Remember = on
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return err
	}

	r.logger.Debug("remember state recorded", "id", id, "on", on)
	return nil
}

// SetAddress records the device's last reported network address.
func (r *Registry) SetAddress(ctx context.Context, id, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}

	old := d
	d.IP = ip
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return err
	}

	r.logger.Debug("device address recorded", "id", id, "ip", ip)
	return nil
}

// SetOnline marks a device online, refreshes its last-seen timestamp,
// and reports whether it was previously offline.
func (r *Registry) SetOnline(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false, ErrNotFound
	}

	old := d
	wasOffline := !d.Online
	d.Online = true
	d.LastSeen = r.now().UTC()
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return false, err
	}

	if wasOffline {
		r.logger.Info("device online", "id", id, "name", d.Name)
	}
	return wasOffline, nil
}

// MarkOffline marks a device offline and refreshes its last-seen
// timestamp. Demoting an already-offline device is a no-op.
func (r *Registry) MarkOffline(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}

	old := d
	d.Online = false
	d.LastSeen = r.now().UTC()
	r.devices[id] = d

	if err := r.persistDevices(ctx); err != nil {
		r.devices[id] = old
		return err
	}

	if old.Online {
		r.logger.Info("device offline", "id", id, "name", d.Name)
	}
	return nil
}

// SweepOffline demotes every online device whose last-seen timestamp
// is older than timeout, returning the devices that were demoted.
// Catches silent disconnects where the last-will signal itself is lost.
func (r *Registry) SweepOffline(ctx context.Context, timeout time.Duration) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().UTC().Add(-timeout)
	var demoted []Device
	for id, d := range r.devices {
		if d.Online && d.LastSeen.Before(cutoff) {
			d.Online = false
			r.devices[id] = d
			demoted = append(demoted, d)
		}
	}

	if len(demoted) == 0 {
		return nil, nil
	}

	if err := r.persistDevices(ctx); err != nil {
		return nil, err
	}

	for _, d := range demoted {
		r.logger.Warn("device timed out", "id", d.ID, "name", d.Name)
	}
	return demoted, nil
}
