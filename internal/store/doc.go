// Package store provides named JSON snapshot persistence.
//
// The registries (devices, operators, pending queues) persist their
// entire collection on every mutation and reload it once at startup.
// Collections are small and bounded, so this is simpler and no slower
// than row-level persistence, and a crash can never leave a collection
// half-written.
//
// Usage:
//
//	snapshots := store.New(db)
//	err := snapshots.Save(ctx, "devices", devices)
//
//	var devices []device.Device
//	found, err := snapshots.Load(ctx, "devices", &devices)
package store
