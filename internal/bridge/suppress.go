package bridge

import (
	"fmt"
	"sync"
	"time"
)

// markerSet is a small TTL set: key → expiry. Entries expire lazily on
// lookup; there is no sweeper and no cancellation, the TTLs are short
// and bounded.
type markerSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func newMarkerSet(now func() time.Time) *markerSet {
	return &markerSet{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// mark adds or refreshes a key with the given TTL.
func (s *markerSet) mark(key string, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = s.now().Add(ttl)
	s.mu.Unlock()
}

// active reports whether a key is present and unexpired.
// Expired entries are removed on lookup.
func (s *markerSet) active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.now().After(expiry) {
		delete(s.entries, key)
		return false
	}
	return true
}

// suppressor decides whether a switch-state echo should produce an
// operator notification.
//
// Two independent marker sets feed the decision: devices mid-sync
// (their echoes are replays of state we already know) and relays an
// operator just commanded (the echo merely confirms the command).
// Suppression affects only chat notifications; registry state and the
// dashboard always see every echo.
type suppressor struct {
	syncInProgress *markerSet
	userControl    *markerSet

	syncTTL    time.Duration
	controlTTL time.Duration
}

func newSuppressor(syncTTL, controlTTL time.Duration, now func() time.Time) *suppressor {
	return &suppressor{
		syncInProgress: newMarkerSet(now),
		userControl:    newMarkerSet(now),
		syncTTL:        syncTTL,
		controlTTL:     controlTTL,
	}
}

// markSync flags a device as mid-sync for the sync TTL.
func (s *suppressor) markSync(deviceID string) {
	s.syncInProgress.mark(deviceID, s.syncTTL)
}

// markUserControl flags a (device, relay) pair as operator-commanded
// for the control TTL. Called before the command is published so the
// echo cannot race the marker.
func (s *suppressor) markUserControl(deviceID string, relay int) {
	s.userControl.mark(controlKey(deviceID, relay), s.controlTTL)
}

// shouldSuppress reports whether a switch echo for (device, relay)
// falls inside either suppression window.
func (s *suppressor) shouldSuppress(deviceID string, relay int) bool {
	if s.syncInProgress.active(deviceID) {
		return true
	}
	return s.userControl.active(controlKey(deviceID, relay))
}

func controlKey(deviceID string, relay int) string {
	return fmt.Sprintf("%s/%d", deviceID, relay)
}
