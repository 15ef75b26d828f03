package bridge

import (
	"context"
	"fmt"
	"time"
)

// RunWatchdog sweeps for silently disconnected devices until ctx is
// cancelled.
//
// Explicit last-will signals can themselves be lost; the watchdog
// catches devices that simply stopped announcing. Demoting an
// already-offline device is a no-op inside the registry, so repeated
// sweeps are idempotent.
func (b *Bridge) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.GetSweepInterval())
	defer ticker.Stop()

	b.logger.Info("offline watchdog started",
		"interval", b.cfg.GetSweepInterval(),
		"timeout", b.cfg.GetOfflineTimeout(),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("offline watchdog stopped")
			return
		case <-ticker.C:
			b.sweep(ctx)
		}
	}
}

// sweep demotes timed-out devices and announces each demotion.
func (b *Bridge) sweep(ctx context.Context) {
	demoted, err := b.registry.SweepOffline(ctx, b.cfg.GetOfflineTimeout())
	if err != nil {
		b.logger.Error("offline sweep failed", "error", err)
		return
	}
	if len(demoted) == 0 {
		return
	}

	for _, d := range demoted {
		b.notifier.NotifyAll(fmt.Sprintf("📴 %s went offline (no response)", d.Name))
		b.telemetry.WriteOnlineState(d.ID, false)
	}
	b.dashboard.DevicesChanged()
}
