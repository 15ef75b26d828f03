package bridge

import (
	"context"
	"sync"
	"time"
)

// syncCoordinator tracks which devices have been sent a sync request
// during this process lifetime.
//
// The set is cleared only at process start. A device that reconnects
// after being synced once still gets a fresh sync because the
// was-offline condition retriggers it; the set exists to stop
// duplicate online announcements within one connectivity session from
// causing sync storms.
type syncCoordinator struct {
	mu     sync.Mutex
	synced map[string]bool
}

func newSyncCoordinator() *syncCoordinator {
	return &syncCoordinator{synced: make(map[string]bool)}
}

// markSynced records a sync and reports whether this was the first
// one for the device this process lifetime.
func (c *syncCoordinator) markSynced(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.synced[deviceID] {
		return false
	}
	c.synced[deviceID] = true
	return true
}

// hasSynced reports whether the device was synced this process
// lifetime.
func (c *syncCoordinator) hasSynced(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced[deviceID]
}

// scheduleSync marks the device mid-sync and schedules the sync
// request after the settle delay.
//
// The delay gives a freshly (re)connected device time to subscribe to
// its own command topic; publishing immediately risks the device
// missing the request. The suppression marker covers the delay plus
// the echo window, so replayed state never reaches operators as
// notifications.
func (b *Bridge) scheduleSync(deviceID string) {
	b.suppress.markSync(deviceID)
	b.sync.markSynced(deviceID)

	topic := b.topics.SyncCommand(deviceID)
	b.schedule(b.cfg.GetSyncDelay(), func() {
		if err := b.transport.PublishCommand(topic, "1"); err != nil {
			b.logger.Warn("sync request failed", "device", deviceID, "error", err)
			return
		}
		b.logger.Debug("sync requested", "device", deviceID)
	})
}

// RequestSync publishes an immediate sync request and suppresses the
// resulting echo burst. Used when an operator opens a control view and
// wants fresh state.
func (b *Bridge) RequestSync(ctx context.Context, deviceID string) error {
	if _, err := b.registry.Get(deviceID); err != nil {
		return err
	}

	b.suppress.markSync(deviceID)
	if err := b.transport.PublishCommand(b.topics.SyncCommand(deviceID), "1"); err != nil {
		return err
	}

	b.logger.Debug("manual sync requested", "device", deviceID)
	return nil
}

// RefreshWait blocks for the configured refresh window (or until ctx
// is cancelled), giving a just-synced device time to echo its state
// before the caller re-reads the registry.
func (b *Bridge) RefreshWait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.cfg.GetRefreshWait()):
	}
}
