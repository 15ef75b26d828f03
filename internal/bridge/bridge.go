package bridge

import (
	"fmt"
	"time"

	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
)

// Transport is the outbound half of the MQTT boundary the engine
// needs: wildcard subscriptions in and device commands out.
// Satisfied by *mqtt.Client.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishCommand(topic, payload string) error
}

// Notifier fans a message out to every authorized operator.
// Delivery is best-effort: per-recipient failures are logged by the
// implementation and never surface here.
type Notifier interface {
	NotifyAll(text string)
}

// Broadcaster pushes state changes to the dashboard channel.
// Notification suppression never applies to this channel.
type Broadcaster interface {
	DeviceUpdate(deviceID string, relay int, on bool)
	DevicesChanged()
}

// Telemetry records relay and connectivity transitions for the
// optional time-series backend.
type Telemetry interface {
	WriteRelayState(deviceID string, relay int, on bool)
	WriteOnlineState(deviceID string, online bool)
}

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noop implementations let collaborators be optional.

type noopNotifier struct{}

func (noopNotifier) NotifyAll(string) {}

type noopBroadcaster struct{}

func (noopBroadcaster) DeviceUpdate(string, int, bool) {}
func (noopBroadcaster) DevicesChanged()                {}

type noopTelemetry struct{}

func (noopTelemetry) WriteRelayState(string, int, bool) {}
func (noopTelemetry) WriteOnlineState(string, bool)     {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge is the device state synchronization engine.
//
// It reconciles transport events (status announcements, last-will
// offline signals, per-relay echoes) with operator commands, keeps the
// registry authoritative, and decides which changes become operator
// notifications.
type Bridge struct {
	registry *device.Registry
	users    *auth.Users

	transport Transport
	topics    mqtt.Topics
	qos       byte

	notifier  Notifier
	dashboard Broadcaster
	telemetry Telemetry
	logger    Logger

	cfg      config.DevicesConfig
	sync     *syncCoordinator
	suppress *suppressor

	now      func() time.Time
	schedule func(d time.Duration, f func())
}

// New creates the engine. Optional collaborators (notifier, dashboard,
// telemetry, logger) default to no-ops and can be attached later;
// the bot and API layers are constructed after the engine is.
func New(registry *device.Registry, users *auth.Users, transport Transport, cfg config.DevicesConfig, qos byte) *Bridge {
	now := time.Now
	return &Bridge{
		registry:  registry,
		users:     users,
		transport: transport,
		qos:       qos,
		notifier:  noopNotifier{},
		dashboard: noopBroadcaster{},
		telemetry: noopTelemetry{},
		logger:    noopLogger{},
		cfg:       cfg,
		sync:      newSyncCoordinator(),
		suppress: newSuppressor(
			cfg.GetSyncDelay()+cfg.GetSyncWindow(),
			cfg.GetControlWindow(),
			now,
		),
		now: now,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// SetNotifier attaches the operator notification fan-out.
func (b *Bridge) SetNotifier(n Notifier) {
	if n != nil {
		b.notifier = n
	}
}

// SetBroadcaster attaches the dashboard push channel.
func (b *Bridge) SetBroadcaster(bc Broadcaster) {
	if bc != nil {
		b.dashboard = bc
	}
}

// SetTelemetry attaches the optional time-series writer.
func (b *Bridge) SetTelemetry(t Telemetry) {
	if t != nil {
		b.telemetry = t
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(l Logger) {
	if l != nil {
		b.logger = l
	}
}

// Registry exposes the device registry to the presentation layers.
func (b *Bridge) Registry() *device.Registry {
	return b.registry
}

// Users exposes operator membership to the presentation layers.
func (b *Bridge) Users() *auth.Users {
	return b.users
}

// BroadcastDevices pushes a fresh device snapshot to the dashboard.
// Called by presentation layers after mutations wider than one relay
// (approval, removal, rename).
func (b *Bridge) BroadcastDevices() {
	b.dashboard.DevicesChanged()
}

// Start subscribes to all device state topics. Must be called after
// the transport is connected; subscriptions survive reconnects via the
// transport's own restore mechanism.
func (b *Bridge) Start() error {
	subs := []string{
		b.topics.AllStatuses(),
		b.topics.AllRememberStates(),
		b.topics.AllIPs(),
	}
	for relay := 1; relay <= device.NumRelays; relay++ {
		subs = append(subs, b.topics.AllSwitchStates(relay))
	}

	for _, topic := range subs {
		if err := b.transport.Subscribe(topic, b.qos, b.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	b.logger.Info("bridge subscribed to device topics", "count", len(subs))
	return nil
}
