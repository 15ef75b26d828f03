package device

import (
	"context"
	"strings"
)

// AddPending records a newly discovered device id for approval.
//
// Returns true if a new pending entry was created, false if one
// already exists for this id (duplicate online announcements from an
// unapproved device are common).
func (r *Registry) AddPending(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[id]; ok {
		return false, nil
	}

	p := PendingDevice{
		ID:        id,
		Name:      DefaultName(id),
		FirstSeen: r.now().UTC(),
	}
	r.pending[id] = p

	if err := r.persistPending(ctx); err != nil {
		delete(r.pending, id)
		return false, err
	}

	r.logger.Info("device discovered", "id", id, "pending", len(r.pending))
	return true, nil
}

// PendingList returns all pending devices in discovery order.
func (r *Registry) PendingList() []PendingDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedPendingLocked()
}

// PendingCount returns the number of pending devices.
func (r *Registry) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// GetPending retrieves a pending device by id.
// Returns ErrNotFound if no entry exists.
func (r *Registry) GetPending(id string) (PendingDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pending[id]
	if !ok {
		return PendingDevice{}, ErrNotFound
	}
	return p, nil
}

// PendingByIndex retrieves a pending device by zero-based position in
// discovery order. Returns ErrNotFound for an out-of-range index.
func (r *Registry) PendingByIndex(i int) (PendingDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.sortedPendingLocked()
	if i < 0 || i >= len(pending) {
		return PendingDevice{}, ErrNotFound
	}
	return pending[i], nil
}

// RemovePending discards a pending entry without approving it.
// Returns ErrNotFound if no entry exists.
func (r *Registry) RemovePending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.pending, id)

	if err := r.persistPending(ctx); err != nil {
		r.pending[id] = p
		return err
	}

	r.logger.Info("pending device discarded", "id", id)
	return nil
}

// Promote converts a pending device into an active Device with the
// given display name.
//
// Fails with ErrNotFound if no pending entry exists (a second
// concurrent approval of the same id lands here and is a safe no-op),
// ErrCapacityExceeded when the registry is full (the pending entry
// remains so the operator can retry after freeing a slot), or
// ErrInvalidName.
func (r *Registry) Promote(ctx context.Context, id, name string) (Device, error) {
	if err := ValidateName(name); err != nil {
		return Device{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	if len(r.devices) >= r.limits.MaxDevices {
		return Device{}, ErrCapacityExceeded
	}

	d := Device{
		ID:       id,
		Name:     strings.TrimSpace(name),
		LastSeen: r.now().UTC(),
	}
	r.devices[id] = d
	delete(r.pending, id)

	if err := r.persistDevices(ctx); err != nil {
		delete(r.devices, id)
		r.pending[id] = p
		return Device{}, err
	}
	if err := r.persistPending(ctx); err != nil {
		delete(r.devices, id)
		r.pending[id] = p
		return Device{}, err
	}

	r.logger.Info("device approved", "id", id, "name", d.Name, "count", len(r.devices))
	return d, nil
}
