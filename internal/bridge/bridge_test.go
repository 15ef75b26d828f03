package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
)

// =============================================================================
// Mock Collaborators
// =============================================================================

type mockSnapshots struct {
	data map[string][]byte
}

func newMockSnapshots() *mockSnapshots {
	return &mockSnapshots{data: make(map[string][]byte)}
}

func (m *mockSnapshots) Save(_ context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[name] = b
	return nil
}

func (m *mockSnapshots) Load(_ context.Context, name string, v any) (bool, error) {
	b, ok := m.data[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

type publishedMsg struct {
	topic   string
	payload string
}

type mockTransport struct {
	mu        sync.Mutex
	subs      map[string]mqtt.MessageHandler
	published []publishedMsg
}

func newMockTransport() *mockTransport {
	return &mockTransport{subs: make(map[string]mqtt.MessageHandler)}
}

func (m *mockTransport) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = h
	return nil
}

func (m *mockTransport) PublishCommand(topic, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{topic, payload})
	return nil
}

func (m *mockTransport) publishedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, len(m.published))
	for i, p := range m.published {
		topics[i] = p.topic
	}
	return topics
}

type mockNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (m *mockNotifier) NotifyAll(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *mockNotifier) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

type deviceUpdate struct {
	deviceID string
	relay    int
	on       bool
}

type mockBroadcaster struct {
	mu      sync.Mutex
	updates []deviceUpdate
	changed int
}

func (m *mockBroadcaster) DeviceUpdate(deviceID string, relay int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, deviceUpdate{deviceID, relay, on})
}

func (m *mockBroadcaster) DevicesChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed++
}

func (m *mockBroadcaster) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

// fakeClock provides a controllable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scheduledCall captures deferred work instead of running real timers.
type scheduledCall struct {
	delay time.Duration
	fn    func()
}

type testHarness struct {
	bridge    *Bridge
	transport *mockTransport
	notifier  *mockNotifier
	dashboard *mockBroadcaster
	clock     *fakeClock
	scheduled []scheduledCall
}

func testDevicesConfig() config.DevicesConfig {
	return config.DevicesConfig{
		Max:              25,
		WarningThreshold: 20,
		OfflineTimeout:   60,
		SweepInterval:    30,
		SyncDelayMs:      500,
		SyncWindowMs:     1000,
		ControlWindowMs:  2000,
		RefreshWaitMs:    1,
		PageSize:         10,
	}
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	clock := newFakeClock()
	cfg := testDevicesConfig()

	registry := device.NewRegistry(newMockSnapshots(), device.Limits{
		MaxDevices:       cfg.Max,
		WarningThreshold: cfg.WarningThreshold,
	})

	users := auth.NewUsers(newMockSnapshots(), 1000, "pw")
	if err := users.Load(context.Background()); err != nil {
		t.Fatalf("users.Load() error = %v", err)
	}

	transport := newMockTransport()
	b := New(registry, users, transport, cfg, 1)

	h := &testHarness{
		bridge:    b,
		transport: transport,
		notifier:  &mockNotifier{},
		dashboard: &mockBroadcaster{},
		clock:     clock,
	}

	b.SetNotifier(h.notifier)
	b.SetBroadcaster(h.dashboard)
	b.now = clock.Now
	b.suppress = newSuppressor(
		cfg.GetSyncDelay()+cfg.GetSyncWindow(),
		cfg.GetControlWindow(),
		clock.Now,
	)
	b.schedule = func(d time.Duration, f func()) {
		h.scheduled = append(h.scheduled, scheduledCall{d, f})
	}

	return h
}

// addDevice registers and optionally brings online a test device.
func (h *testHarness) addDevice(t *testing.T, id, name string, online bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.bridge.registry.AddApproved(ctx, id, name); err != nil {
		t.Fatalf("AddApproved(%s) error = %v", id, err)
	}
	if online {
		if _, err := h.bridge.registry.SetOnline(ctx, id); err != nil {
			t.Fatalf("SetOnline(%s) error = %v", id, err)
		}
		h.bridge.sync.markSynced(id)
	}
}

// deliver injects a transport message through the parsed-event boundary.
func (h *testHarness) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	if err := h.bridge.handleMessage(topic, []byte(payload)); err != nil {
		t.Fatalf("handleMessage(%s) error = %v", topic, err)
	}
}

// runScheduled fires all captured deferred work.
func (h *testHarness) runScheduled() {
	for _, s := range h.scheduled {
		s.fn()
	}
	h.scheduled = nil
}

// =============================================================================
// Discovery
// =============================================================================

func TestUnknownDeviceOnlineCreatesPending(t *testing.T) {
	h := newTestHarness(t)

	h.deliver(t, "device/sensor_01/status", "online")

	p, err := h.bridge.registry.GetPending("sensor_01")
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if p.Name != "sensor 01" {
		t.Errorf("pending name = %q, want %q", p.Name, "sensor 01")
	}
	if h.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", h.notifier.count())
	}
	if !strings.Contains(h.notifier.last(), "sensor 01") {
		t.Errorf("discovery notification = %q, want device name mentioned", h.notifier.last())
	}
	if h.bridge.registry.Count() != 0 {
		t.Error("discovery must not mutate the device registry")
	}
}

func TestDuplicateDiscoveryNotifiesOnce(t *testing.T) {
	h := newTestHarness(t)

	h.deliver(t, "device/sensor_01/status", "online")
	h.deliver(t, "device/sensor_01/status", "online")

	if h.notifier.count() != 1 {
		t.Errorf("notifications = %d for duplicate discovery, want 1", h.notifier.count())
	}
	if h.bridge.registry.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", h.bridge.registry.PendingCount())
	}
}

// =============================================================================
// Sync Coordination
// =============================================================================

func TestOfflineDeviceOnlineSchedulesSync(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", false)

	h.deliver(t, "device/sensor_01/status", "online")

	if len(h.scheduled) != 1 {
		t.Fatalf("scheduled = %d, want 1", len(h.scheduled))
	}
	if h.scheduled[0].delay != 500*time.Millisecond {
		t.Errorf("sync delay = %v, want 500ms", h.scheduled[0].delay)
	}

	h.runScheduled()
	topics := h.transport.publishedTopics()
	if len(topics) != 1 || topics[0] != "device/sensor_01/command/sync" {
		t.Errorf("published = %v, want sync command", topics)
	}
}

func TestDuplicateOnlineDoesNotResync(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", false)

	h.deliver(t, "device/sensor_01/status", "online")
	h.runScheduled()

	// Second announcement while already online and synced
	h.deliver(t, "device/sensor_01/status", "online")

	if len(h.scheduled) != 0 {
		t.Errorf("scheduled = %d after duplicate online, want 0", len(h.scheduled))
	}
}

func TestReconnectAfterOfflineResyncs(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", false)

	h.deliver(t, "device/sensor_01/status", "online")
	h.runScheduled()
	h.deliver(t, "device/sensor_01/status", "offline")

	// Reconnect: was-offline retriggers the sync even though the
	// device was synced earlier this process lifetime.
	h.deliver(t, "device/sensor_01/status", "online")
	if len(h.scheduled) != 1 {
		t.Errorf("scheduled = %d on reconnect, want 1", len(h.scheduled))
	}
}

// =============================================================================
// Suppression
// =============================================================================

func TestSyncWindowSuppressesEchoes(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", false)

	h.deliver(t, "device/sensor_01/status", "online")
	base := h.notifier.count() // online notification

	// Echo arrives inside the sync window: dashboard yes, chat no.
	h.deliver(t, "device/sensor_01/switch2/state", "1")

	if h.notifier.count() != base {
		t.Error("echo inside sync window must not notify operators")
	}
	if h.dashboard.updateCount() != 1 {
		t.Errorf("dashboard updates = %d, want 1 (never suppressed)", h.dashboard.updateCount())
	}

	d, _ := h.bridge.registry.Get("sensor_01")
	if !d.Switches[1] {
		t.Error("registry must record the suppressed echo")
	}

	// Past the full delay+window the marker has expired.
	h.clock.Advance(1501 * time.Millisecond)
	h.deliver(t, "device/sensor_01/switch2/state", "0")

	if h.notifier.count() != base+1 {
		t.Errorf("notifications = %d, want %d (echo after window notifies)",
			h.notifier.count(), base+1)
	}
}

func TestUserControlWindowSuppressesEcho(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	ctx := context.Background()

	if err := h.bridge.SetSwitch(ctx, "sensor_01", 2, true); err != nil {
		t.Fatalf("SetSwitch() error = %v", err)
	}
	base := h.notifier.count()

	// The confirming echo inside 2000 ms is expected, not news.
	// The registry already holds the optimistic state so the echo is
	// unchanged; flip it externally first to prove the suppression.
	h.deliver(t, "device/sensor_01/switch2/state", "0")
	if h.notifier.count() != base {
		t.Error("echo inside control window must not notify")
	}

	// An unrelated change on the same relay after expiry notifies.
	h.clock.Advance(2001 * time.Millisecond)
	h.deliver(t, "device/sensor_01/switch2/state", "1")
	if h.notifier.count() != base+1 {
		t.Errorf("notifications = %d, want %d", h.notifier.count(), base+1)
	}
}

func TestSuppressionIsPerRelay(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	if err := h.bridge.SetSwitch(context.Background(), "sensor_01", 1, true); err != nil {
		t.Fatalf("SetSwitch() error = %v", err)
	}
	base := h.notifier.count()

	// A different relay on the same device is not covered.
	h.deliver(t, "device/sensor_01/switch3/state", "1")
	if h.notifier.count() != base+1 {
		t.Error("echo on uncontrolled relay should notify")
	}
}

func TestUnchangedEchoStillReachesDashboard(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	// Relay 1 is already off; the echo confirms what the registry
	// holds. The dashboard mirrors it anyway, the chat stays quiet.
	h.deliver(t, "device/sensor_01/switch1/state", "0")

	if h.dashboard.updateCount() != 1 {
		t.Errorf("dashboard updates = %d, want 1", h.dashboard.updateCount())
	}
	if h.notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0 for an unchanged echo", h.notifier.count())
	}
}

// =============================================================================
// Offline Handling
// =============================================================================

func TestOfflineSignal(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	h.deliver(t, "device/sensor_01/status", "offline")

	d, _ := h.bridge.registry.Get("sensor_01")
	if d.Online {
		t.Error("device should be offline")
	}
	if h.notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", h.notifier.count())
	}

	// Repeated offline signal: no further notification.
	h.deliver(t, "device/sensor_01/status", "offline")
	if h.notifier.count() != 1 {
		t.Errorf("notifications = %d after repeat, want 1", h.notifier.count())
	}
}

func TestOfflineSignalUnknownDeviceIgnored(t *testing.T) {
	h := newTestHarness(t)

	h.deliver(t, "device/ghost/status", "offline")
	if h.notifier.count() != 0 {
		t.Error("offline from unknown device should be silent")
	}
}

func TestWatchdogSweep(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	// Zero timeout makes the just-seen device immediately stale.
	h.bridge.cfg.OfflineTimeout = 0
	time.Sleep(5 * time.Millisecond)
	h.bridge.sweep(context.Background())

	d, _ := h.bridge.registry.Get("sensor_01")
	if d.Online {
		t.Error("watchdog should demote the stale device")
	}
	if h.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", h.notifier.count())
	}

	// Second sweep is a no-op.
	h.bridge.sweep(context.Background())
	if h.notifier.count() != 1 {
		t.Error("second sweep must not re-notify")
	}
}

// =============================================================================
// Other Echoes
// =============================================================================

func TestRememberAndAddressEchoes(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	h.deliver(t, "device/sensor_01/remember/state", "1")
	h.deliver(t, "device/sensor_01/ip", "192.168.1.42")

	d, _ := h.bridge.registry.Get("sensor_01")
	if !d.Remember {
		t.Error("remember echo not recorded")
	}
	if d.IP != "192.168.1.42" {
		t.Errorf("IP = %q, want 192.168.1.42", d.IP)
	}

	// Unknown devices are ignored without error.
	h.deliver(t, "device/ghost/remember/state", "1")
	h.deliver(t, "device/ghost/ip", "10.0.0.1")
	h.deliver(t, "device/ghost/switch1/state", "1")
}

// =============================================================================
// Operator Commands
// =============================================================================

func TestSetSwitchPublishesCommand(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	if err := h.bridge.SetSwitch(context.Background(), "sensor_01", 2, true); err != nil {
		t.Fatalf("SetSwitch() error = %v", err)
	}

	if len(h.transport.published) != 1 {
		t.Fatalf("published = %d, want 1", len(h.transport.published))
	}
	p := h.transport.published[0]
	if p.topic != "device/sensor_01/command/switch2" || p.payload != "1" {
		t.Errorf("published = %+v", p)
	}
	if h.dashboard.updateCount() != 1 {
		t.Error("dashboard should see the optimistic state")
	}
}

func TestSetSwitchErrors(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	ctx := context.Background()

	if err := h.bridge.SetSwitch(ctx, "ghost", 1, true); !errors.Is(err, device.ErrNotFound) {
		t.Errorf("SetSwitch(ghost) error = %v, want ErrNotFound", err)
	}
	if err := h.bridge.SetSwitch(ctx, "sensor_01", 5, true); !errors.Is(err, device.ErrInvalidRelay) {
		t.Errorf("SetSwitch(relay 5) error = %v, want ErrInvalidRelay", err)
	}
	if len(h.transport.published) != 0 {
		t.Error("failed commands must not publish")
	}
}

func TestToggleSwitch(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	ctx := context.Background()

	on, err := h.bridge.ToggleSwitch(ctx, "sensor_01", 1)
	if err != nil {
		t.Fatalf("ToggleSwitch() error = %v", err)
	}
	if !on {
		t.Error("first toggle should turn on")
	}

	on, err = h.bridge.ToggleSwitch(ctx, "sensor_01", 1)
	if err != nil {
		t.Fatalf("ToggleSwitch() error = %v", err)
	}
	if on {
		t.Error("second toggle should turn off")
	}
}

func TestSetAllSwitches(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	if err := h.bridge.SetAllSwitches(context.Background(), "sensor_01", true); err != nil {
		t.Fatalf("SetAllSwitches() error = %v", err)
	}

	topics := h.transport.publishedTopics()
	if len(topics) != device.NumRelays {
		t.Fatalf("published = %d commands, want %d", len(topics), device.NumRelays)
	}

	d, _ := h.bridge.registry.Get("sensor_01")
	for i, on := range d.Switches {
		if !on {
			t.Errorf("switch %d = off after SetAllSwitches(true)", i+1)
		}
	}
}

func TestSetAllDevices(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	h.addDevice(t, "sensor_02", "Fan", true)

	h.bridge.SetAllDevices(context.Background(), true)

	if len(h.transport.published) != 2*device.NumRelays {
		t.Errorf("published = %d commands, want %d",
			len(h.transport.published), 2*device.NumRelays)
	}
}

func TestToggleRemember(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	ctx := context.Background()

	on, err := h.bridge.ToggleRemember(ctx, "sensor_01")
	if err != nil {
		t.Fatalf("ToggleRemember() error = %v", err)
	}
	if !on {
		t.Error("first toggle should enable remember")
	}

	p := h.transport.published[len(h.transport.published)-1]
	if p.topic != "device/sensor_01/command/remember" || p.payload != "1" {
		t.Errorf("published = %+v", p)
	}
}

func TestRequestSync(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	ctx := context.Background()

	if err := h.bridge.RequestSync(ctx, "sensor_01"); err != nil {
		t.Fatalf("RequestSync() error = %v", err)
	}
	topics := h.transport.publishedTopics()
	if len(topics) != 1 || topics[0] != "device/sensor_01/command/sync" {
		t.Errorf("published = %v", topics)
	}

	// Echoes during the manual sync are suppressed.
	base := h.notifier.count()
	h.deliver(t, "device/sensor_01/switch1/state", "1")
	if h.notifier.count() != base {
		t.Error("echo during manual sync should be suppressed")
	}

	if err := h.bridge.RequestSync(ctx, "ghost"); !errors.Is(err, device.ErrNotFound) {
		t.Errorf("RequestSync(ghost) error = %v, want ErrNotFound", err)
	}
}

// =============================================================================
// Subscriptions
// =============================================================================

func TestStartSubscribes(t *testing.T) {
	h := newTestHarness(t)

	if err := h.bridge.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := []string{
		"device/+/status",
		"device/+/remember/state",
		"device/+/ip",
		"device/+/switch1/state",
		"device/+/switch2/state",
		"device/+/switch3/state",
		"device/+/switch4/state",
	}
	for _, topic := range want {
		if _, ok := h.transport.subs[topic]; !ok {
			t.Errorf("missing subscription %s", topic)
		}
	}
}
