package bot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/bridge"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
)

const (
	testAdminID  int64 = 1000
	testPassword       = "hunter2"
)

// =============================================================================
// Mocks
// =============================================================================

// memSnapshots is an in-memory snapshot store shared by the device and
// user registries under test.
type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: make(map[string][]byte)}
}

func (m *memSnapshots) Save(_ context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = raw
	return nil
}

func (m *memSnapshots) Load(_ context.Context, name string, v any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[name]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

type publishedMsg struct {
	topic   string
	payload string
}

// fakeTransport records published commands; subscriptions always
// succeed.
type fakeTransport struct {
	published []publishedMsg
}

func (t *fakeTransport) Subscribe(string, byte, mqtt.MessageHandler) error {
	return nil
}

func (t *fakeTransport) PublishCommand(topic, payload string) error {
	t.published = append(t.published, publishedMsg{topic, payload})
	return nil
}

type editCall struct {
	chatID    int64
	messageID int
	text      string
	kb        *Keyboard
}

type answerCall struct {
	id   string
	text string
}

// mockChat records outbound chat traffic.
type mockChat struct {
	sent    []Message
	edits   []editCall
	answers []answerCall
}

func (c *mockChat) Send(msg Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *mockChat) Edit(chatID int64, messageID int, text string, kb *Keyboard) error {
	c.edits = append(c.edits, editCall{chatID, messageID, text, kb})
	return nil
}

func (c *mockChat) AnswerCallback(id, text string) error {
	c.answers = append(c.answers, answerCall{id, text})
	return nil
}

// =============================================================================
// Harness
// =============================================================================

type testHarness struct {
	bot       *Bot
	chat      *mockChat
	transport *fakeTransport
	registry  *device.Registry
	users     *auth.Users
	engine    *bridge.Bridge
}

func testConfig() config.DevicesConfig {
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
	return newTestHarnessWithConfig(t, testConfig())
}

func newTestHarnessWithConfig(t *testing.T, cfg config.DevicesConfig) *testHarness {
	t.Helper()

	snapshots := newMemSnapshots()
	registry := device.NewRegistry(snapshots, device.Limits{
		MaxDevices:       cfg.Max,
		WarningThreshold: cfg.WarningThreshold,
	})

	users := auth.NewUsers(snapshots, testAdminID, testPassword)
	if err := users.Load(context.Background()); err != nil {
		t.Fatalf("loading users: %v", err)
	}

	transport := &fakeTransport{}
	engine := bridge.New(registry, users, transport, cfg, 1)

	chat := &mockChat{}
	b := New(chat, engine, "http://bridge.local:3000", cfg.PageSize)

	return &testHarness{
		bot:       b,
		chat:      chat,
		transport: transport,
		registry:  registry,
		users:     users,
		engine:    engine,
	}
}

func (h *testHarness) addDevice(t *testing.T, id, name string, online bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.registry.AddApproved(ctx, id, name); err != nil {
		t.Fatalf("adding device %s: %v", id, err)
	}
	if online {
		if _, err := h.registry.SetOnline(ctx, id); err != nil {
			t.Fatalf("marking %s online: %v", id, err)
		}
	}
}

func (h *testHarness) addPending(t *testing.T, id string) {
	t.Helper()
	if _, err := h.registry.AddPending(context.Background(), id); err != nil {
		t.Fatalf("adding pending %s: %v", id, err)
	}
}

// command builds an inbound text update from the given operator.
func command(userID int64, text string) Update {
	return Update{ChatID: userID, UserID: userID, Text: text}
}

// press builds an inbound button press from the given operator.
func press(userID int64, data string) Update {
	return Update{
		ChatID: userID,
		UserID: userID,
		Callback: &CallbackRef{
			ID:        "cb-1",
			Data:      data,
			MessageID: 7,
		},
	}
}

func (h *testHarness) lastSent(t *testing.T) Message {
	t.Helper()
	if len(h.chat.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return h.chat.sent[len(h.chat.sent)-1]
}

func (h *testHarness) lastAnswer(t *testing.T) answerCall {
	t.Helper()
	if len(h.chat.answers) == 0 {
		t.Fatal("no callback answers")
	}
	return h.chat.answers[len(h.chat.answers)-1]
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected %q to contain %q", s, substr)
	}
}
